// Package monitor forwards engine events to the operator: alerts go to the
// configured sink, trades and stop moves are logged.
package monitor

import (
	"context"
	"fmt"
	"log"

	"swingbot/internal/events"
)

// Monitor watches the event bus and delivers alerts.
type Monitor struct {
	Bus  *events.Bus
	Sink AlertSink
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("monitor: bus not set; skipping")
		return
	}
	alerts, unsubAlerts := m.Bus.Subscribe(events.TopicAlert, 50)
	trades, unsubTrades := m.Bus.Subscribe(events.TopicTradeExecuted, 50)
	stops, unsubStops := m.Bus.Subscribe(events.TopicStopMoved, 50)
	go func() {
		defer unsubAlerts()
		defer unsubTrades()
		defer unsubStops()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-alerts:
				if !ok {
					return
				}
				m.deliver(msg)
			case msg, ok := <-trades:
				if !ok {
					return
				}
				if t, isTrade := msg.(events.TradeExecuted); isTrade {
					log.Printf("monitor: trade %s qty=%s price=%s", t.Side, t.Qty, t.Price)
				}
			case msg, ok := <-stops:
				if !ok {
					return
				}
				if s, isStop := msg.(events.StopMoved); isStop {
					m.send(fmt.Sprintf("[stop] trailing stop raised to %s (price %s)", s.Stop, s.Price))
				}
			}
		}
	}()
}

func (m *Monitor) deliver(msg any) {
	alert, ok := msg.(events.Alert)
	if !ok {
		return
	}
	log.Printf("monitor: alert kind=%s: %s", alert.Kind, alert.Message)
	m.send(fmt.Sprintf("[%s] %s", alert.Kind, alert.Message))
}

func (m *Monitor) send(message string) {
	if m.Sink == nil {
		return
	}
	if err := m.Sink.Send(message); err != nil {
		log.Printf("monitor: alert delivery failed: %v", err)
	}
}
