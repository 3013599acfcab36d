package events

import "github.com/shopspring/decimal"

// Topic enumerates high-level subjects inside the engine.
type Topic string

const (
	TopicCycleCompleted Topic = "cycle.completed"
	TopicTradeExecuted  Topic = "trade.executed"
	TopicStopMoved      Topic = "stop.moved"
	TopicAlert          Topic = "alert"
)

// TradeExecuted is published after every completed buy or sell.
type TradeExecuted struct {
	Side        string
	Price       decimal.Decimal
	Qty         decimal.Decimal
	RealizedPnL *decimal.Decimal
}

// StopMoved is published when the trailing stop advances.
type StopMoved struct {
	Price decimal.Decimal
	Stop  decimal.Decimal
}

// CycleCompleted is published at the end of every decision cycle.
type CycleCompleted struct {
	Action string
	Reason string
	Price  decimal.Decimal
}

// Alert carries a human-readable notification for the alert sink.
type Alert struct {
	Kind    string
	Message string
}
