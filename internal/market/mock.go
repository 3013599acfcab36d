package market

import (
	"context"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// MockFeed generates a synthetic random-walk series for local development,
// so the engine can run cycles without touching the venue.
type MockFeed struct {
	StartPrice float64
	Step       float64
	History    int

	mu     sync.Mutex
	closes []float64
	rng    *rand.Rand
}

func NewMockFeed(startPrice, step float64, history int, seed int64) *MockFeed {
	if startPrice == 0 {
		startPrice = 50000.0
	}
	if step == 0 {
		step = startPrice * 0.002
	}
	if history == 0 {
		history = 200
	}
	m := &MockFeed{StartPrice: startPrice, Step: step, History: history, rng: rand.New(rand.NewSource(seed))}
	price := startPrice
	for i := 0; i < history; i++ {
		// simple random walk
		next := price + (m.rng.Float64()*2-1)*step
		if next > 0 {
			price = next
		}
		m.closes = append(m.closes, price)
	}
	return m
}

func (m *MockFeed) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return decimal.NewFromFloat(m.closes[len(m.closes)-1]), nil
}

func (m *MockFeed) CloseHistory(ctx context.Context) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.closes))
	copy(out, m.closes)
	return out, nil
}

func (m *MockFeed) advance() {
	last := m.closes[len(m.closes)-1]
	next := last + (m.rng.Float64()*2-1)*m.Step
	if next <= 0 {
		next = last
	}
	m.closes = append(m.closes, next)
	if len(m.closes) > m.History {
		m.closes = m.closes[len(m.closes)-m.History:]
	}
}
