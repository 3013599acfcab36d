package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// GetLedger returns the ledger snapshot, or ErrNotFound before first init.
func (d *Database) GetLedger(ctx context.Context) (LedgerState, error) {
	var state LedgerState
	var initial, cash, asset string
	var entry, stop sql.NullString
	err := d.DB.QueryRowContext(ctx, `
		SELECT epoch, initial_cash, cash, asset, entry_price, trailing_stop, updated_at
		FROM ledger WHERE id = 1
	`).Scan(&state.Epoch, &initial, &cash, &asset, &entry, &stop, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return LedgerState{}, ErrNotFound
	}
	if err != nil {
		return LedgerState{}, fmt.Errorf("query ledger: %w", err)
	}

	if state.InitialCash, err = decimal.NewFromString(initial); err != nil {
		return LedgerState{}, fmt.Errorf("parse initial cash: %w", err)
	}
	if state.Cash, err = decimal.NewFromString(cash); err != nil {
		return LedgerState{}, fmt.Errorf("parse cash: %w", err)
	}
	if state.Asset, err = decimal.NewFromString(asset); err != nil {
		return LedgerState{}, fmt.Errorf("parse asset: %w", err)
	}
	if state.EntryPrice, err = nullDecimal(entry); err != nil {
		return LedgerState{}, fmt.Errorf("parse entry price: %w", err)
	}
	if state.Stop, err = nullDecimal(stop); err != nil {
		return LedgerState{}, fmt.Errorf("parse trailing stop: %w", err)
	}
	return state, nil
}

// InitLedger creates the singleton ledger row with the configured starting
// cash. It is a no-op when the ledger already exists.
func (d *Database) InitLedger(ctx context.Context, initialCash decimal.Decimal) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO ledger (id, epoch, initial_cash, cash, asset)
		VALUES (1, 1, ?, ?, '0')
		ON CONFLICT(id) DO NOTHING
	`, initialCash.String(), initialCash.String())
	return err
}

// SaveLedger persists the snapshot alone (trailing-stop advances on HOLD).
func (d *Database) SaveLedger(ctx context.Context, state LedgerState) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE ledger SET cash = ?, asset = ?, entry_price = ?, trailing_stop = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, state.Cash.String(), state.Asset.String(),
		decimalPtr(state.EntryPrice), decimalPtr(state.Stop))
	return err
}

// SeedLedgerBaseline rewrites the current epoch's starting cash along with
// the balance. Only valid while the epoch has no trades, so audit replay
// keeps reproducing the snapshot; callers must check.
func (d *Database) SeedLedgerBaseline(ctx context.Context, cash decimal.Decimal) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE ledger SET initial_cash = ?, cash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, cash.String(), cash.String())
	return err
}

// SaveLedgerAndTrade appends a trade record and updates the snapshot in a
// single transaction, so a crash can never record one without the other.
func (d *Database) SaveLedgerAndTrade(ctx context.Context, state LedgerState, trade TradeRecord) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (id, epoch, side, price, qty, cash_after, asset_after, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.Epoch, string(trade.Side), trade.Price.String(), trade.Qty.String(),
		trade.CashAfter.String(), trade.AssetAfter.String(), decimalPtr(trade.RealizedPnL))
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ledger SET cash = ?, asset = ?, entry_price = ?, trailing_stop = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, state.Cash.String(), state.Asset.String(),
		decimalPtr(state.EntryPrice), decimalPtr(state.Stop))
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}

	return tx.Commit()
}

// ListTrades returns trades of the given epoch in append order.
func (d *Database) ListTrades(ctx context.Context, epoch int64) ([]TradeRecord, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, epoch, side, price, qty, cash_after, asset_after, realized_pnl, created_at
		FROM trades WHERE epoch = ? ORDER BY created_at ASC, rowid ASC
	`, epoch)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var side, price, qty, cash, asset string
		var pnl sql.NullString
		if err := rows.Scan(&t.ID, &t.Epoch, &side, &price, &qty, &cash, &asset, &pnl, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = Side(side)
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse trade price: %w", err)
		}
		if t.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("parse trade qty: %w", err)
		}
		if t.CashAfter, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("parse cash after: %w", err)
		}
		if t.AssetAfter, err = decimal.NewFromString(asset); err != nil {
			return nil, fmt.Errorf("parse asset after: %w", err)
		}
		if t.RealizedPnL, err = nullDecimal(pnl); err != nil {
			return nil, fmt.Errorf("parse realized pnl: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ResetLedger starts a fresh epoch with the given cash. The previous
// epoch's trade log is retained untouched for audit.
func (d *Database) ResetLedger(ctx context.Context, initialCash decimal.Decimal) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE ledger SET epoch = epoch + 1, initial_cash = ?, cash = ?, asset = '0',
			entry_price = NULL, trailing_stop = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, initialCash.String(), initialCash.String())
	return err
}

// AppendCycle records one decision-cycle outcome.
func (d *Database) AppendCycle(ctx context.Context, c CycleRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO cycles (action, reason, price, ema_fast, ema_slow, rsi, signal, confidence, trigger_source, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Action, c.Reason, c.Price.String(), c.EMAFast, c.EMASlow, c.RSI,
		c.Signal, c.Confidence, c.Trigger, c.DurationMS, nullString(c.Error))
	return err
}

// ListCycles returns the most recent cycle outcomes, newest first.
func (d *Database) ListCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, action, reason, price, ema_fast, ema_slow, rsi, signal, confidence,
		       trigger_source, duration_ms, COALESCE(error, ''), created_at
		FROM cycles ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []CycleRecord
	for rows.Next() {
		var c CycleRecord
		var price string
		if err := rows.Scan(&c.ID, &c.Action, &c.Reason, &price, &c.EMAFast, &c.EMASlow,
			&c.RSI, &c.Signal, &c.Confidence, &c.Trigger, &c.DurationMS, &c.Error, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if c.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse cycle price: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func nullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
