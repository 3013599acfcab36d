// Package advisor wraps the external advisory signal source. The signal is
// consulted by the decision engine but never solely trusted: on any failure
// or timeout the engine degrades the cycle to HOLD.
package advisor

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"swingbot/internal/indicators"
)

// ErrUnavailable indicates the advisory call failed or timed out. The
// engine treats it as a gate-input failure, not a process error.
var ErrUnavailable = errors.New("advisory signal unavailable")

// Signal is the advisory recommendation.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Request carries the market context given to the source.
type Request struct {
	Price    decimal.Decimal
	Features indicators.FeatureVector
	Cash     decimal.Decimal
	Asset    decimal.Decimal
}

// Advice is the source's response.
type Advice struct {
	Signal     Signal
	Confidence float64
	Reason     string
}

// Source produces trade advice for the current market context. Evaluate
// must honor ctx cancellation; calls are time-boxed by the engine.
type Source interface {
	Evaluate(ctx context.Context, req Request) (Advice, error)
}

// Static always answers with a fixed signal. Used in paper setups without
// an advisory endpoint configured, and in tests.
type Static struct {
	Advice Advice
}

func (s Static) Evaluate(ctx context.Context, req Request) (Advice, error) {
	return s.Advice, nil
}
