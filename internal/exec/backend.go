// Package exec provides the execution backend abstraction: one capability
// set, two variants (paper and live), selected once at startup. Callers
// never branch on the active mode.
package exec

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"swingbot/internal/stop"
	"swingbot/pkg/config"
	"swingbot/pkg/db"
	"swingbot/pkg/exchanges/kraken"
)

var (
	// ErrInsufficientFunds rejects a buy exceeding available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientPosition rejects a sell exceeding the held asset.
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrPositionAlreadyOpen enforces the single-position rule.
	ErrPositionAlreadyOpen = errors.New("position already open")
	// ErrBackendUnavailable indicates the venue or storage cannot be
	// reached. It never silently downgrades live to paper.
	ErrBackendUnavailable = errors.New("execution backend unavailable")
	// ErrFillNotConfirmed indicates the live venue did not confirm a full
	// fill within the window. The ledger is left untouched; the cycle may
	// retry later.
	ErrFillNotConfirmed = errors.New("order fill not confirmed")
)

// Backend is the execution capability set. Every successful Buy or Sell
// appends exactly one trade record before returning, and the ledger is
// mutated only after the operation fully succeeds.
type Backend interface {
	// LoadBalances is an idempotent read of the ledger snapshot.
	LoadBalances(ctx context.Context) (db.LedgerState, error)
	// Buy opens a position: requires no open position and cashAmount
	// within available cash. Sets entry price and the initial stop.
	Buy(ctx context.Context, price, cashAmount decimal.Decimal) (db.TradeRecord, error)
	// Sell closes (part of) the position and records realized P/L.
	Sell(ctx context.Context, price, assetAmount decimal.Decimal) (db.TradeRecord, error)
	// UpdateStop persists an advanced trailing stop on HOLD cycles.
	UpdateStop(ctx context.Context, newStop decimal.Decimal) error
}

// New selects the backend variant from configuration. venue may be nil in
// paper mode.
func New(cfg *config.Config, database *db.Database, tracker *stop.Tracker, venue *kraken.Client) (Backend, error) {
	switch cfg.Mode {
	case config.ModePaper:
		return NewPaper(database, tracker), nil
	case config.ModeLive:
		if venue == nil {
			return nil, errors.New("live mode requires a venue client")
		}
		return NewLive(database, tracker, venue, cfg.Pair, cfg.FillConfirmWindow), nil
	default:
		return nil, errors.New("unknown trading mode")
	}
}
