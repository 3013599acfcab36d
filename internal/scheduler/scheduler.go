// Package scheduler drives the hourly decision cycle. A single mutex
// serializes scheduled and manually triggered cycles, and the next run is
// scheduled from the completion of the previous one, so a slow cycle can
// never pile up behind itself.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"swingbot/internal/engine"
)

// Scheduler owns the cycle loop goroutine.
type Scheduler struct {
	eng      *engine.Engine
	interval time.Duration

	mu      sync.Mutex // cycle lock, shared with TriggerNow
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func New(eng *engine.Engine, interval time.Duration) *Scheduler {
	return &Scheduler{eng: eng, interval: interval}
}

// Start launches the loop. The first cycle runs after one full interval.
func (s *Scheduler) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
	log.Printf("scheduler: started, interval=%s", s.interval)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runOne(engine.TriggerSchedule)
			// Rearm only after the cycle has finished.
			timer.Reset(s.interval)
		}
	}
}

// runOne executes one scheduled cycle under the lock. The cycle gets its
// own context so Stop interrupts the wait between cycles, never a cycle in
// flight.
func (s *Scheduler) runOne(trigger string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	if _, err := s.eng.RunCycle(ctx, trigger); err != nil {
		log.Printf("scheduler: cycle error: %v", err)
	}
}

// TriggerNow runs one cycle immediately on the caller's goroutine. It
// blocks until any in-flight scheduled cycle has finished, then holds the
// same lock, so two cycles can never observe the ledger concurrently.
func (s *Scheduler) TriggerNow(ctx context.Context) (engine.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.RunCycle(ctx, engine.TriggerManual)
}

// WithLock runs fn under the cycle lock, so operator maintenance such as a
// ledger reset never interleaves with a running cycle.
func (s *Scheduler) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.cancel()
	<-s.done
	log.Println("scheduler: stopped")
}
