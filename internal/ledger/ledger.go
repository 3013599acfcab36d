// Package ledger owns the durable position ledger: initialization,
// operator resets, and the audit-replay check that guards against state
// corruption.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"swingbot/pkg/db"
)

// ErrInconsistentLedger means replaying the trade log does not reproduce
// the stored snapshot. This is fatal for automatic trading: it is never
// silently repaired, the operator must reset.
var ErrInconsistentLedger = errors.New("ledger does not reconcile with trade log")

// Manager wraps snapshot access and audit replay over storage.
type Manager struct {
	store       *db.Database
	initialCash decimal.Decimal
}

func NewManager(store *db.Database, initialCash decimal.Decimal) *Manager {
	return &Manager{store: store, initialCash: initialCash}
}

// Init creates the ledger on first run; it is a no-op afterwards.
func (m *Manager) Init(ctx context.Context) error {
	return m.store.InitLedger(ctx, m.initialCash)
}

// Snapshot returns the current ledger state.
func (m *Manager) Snapshot(ctx context.Context) (db.LedgerState, error) {
	return m.store.GetLedger(ctx)
}

// Trades returns the current epoch's trade log in append order.
func (m *Manager) Trades(ctx context.Context) ([]db.TradeRecord, error) {
	state, err := m.store.GetLedger(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.ListTrades(ctx, state.Epoch)
}

// Reset starts a fresh epoch with the given cash balance. The previous
// epoch's trades stay in the log for audit. Explicit operator action only.
func (m *Manager) Reset(ctx context.Context, initialCash decimal.Decimal) error {
	return m.store.ResetLedger(ctx, initialCash)
}

// Verify replays the current epoch's trade log from the initial balance
// and checks that it reproduces both each record's running balances and
// the stored snapshot. Returns ErrInconsistentLedger on any mismatch.
func (m *Manager) Verify(ctx context.Context) error {
	state, err := m.store.GetLedger(ctx)
	if err != nil {
		return err
	}
	trades, err := m.store.ListTrades(ctx, state.Epoch)
	if err != nil {
		return err
	}

	cash := state.InitialCash
	asset := decimal.Zero
	for _, t := range trades {
		switch t.Side {
		case db.SideBuy:
			cash = cash.Sub(t.Qty.Mul(t.Price))
			asset = asset.Add(t.Qty)
		case db.SideSell:
			cash = cash.Add(t.Qty.Mul(t.Price))
			asset = asset.Sub(t.Qty)
		default:
			return fmt.Errorf("%w: trade %s has unknown side %q", ErrInconsistentLedger, t.ID, t.Side)
		}

		if !cash.Equal(t.CashAfter) || !asset.Equal(t.AssetAfter) {
			return fmt.Errorf("%w: trade %s recorded %s/%s, replay gives %s/%s",
				ErrInconsistentLedger, t.ID, t.CashAfter, t.AssetAfter, cash, asset)
		}
	}

	if !cash.Equal(state.Cash) || !asset.Equal(state.Asset) {
		return fmt.Errorf("%w: snapshot %s/%s, replay gives %s/%s",
			ErrInconsistentLedger, state.Cash, state.Asset, cash, asset)
	}
	if state.HasPosition() && state.EntryPrice == nil {
		return fmt.Errorf("%w: open position without entry price", ErrInconsistentLedger)
	}
	return nil
}
