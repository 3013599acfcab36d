package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS ledger (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    epoch INTEGER NOT NULL DEFAULT 1,
    initial_cash TEXT NOT NULL,
    cash TEXT NOT NULL,
    asset TEXT NOT NULL,
    entry_price TEXT,
    trailing_stop TEXT,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    epoch INTEGER NOT NULL,
    side TEXT NOT NULL,
    price TEXT NOT NULL,
    qty TEXT NOT NULL,
    cash_after TEXT NOT NULL,
    asset_after TEXT NOT NULL,
    realized_pnl TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_epoch ON trades(epoch, created_at);

CREATE TABLE IF NOT EXISTS cycles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL,
    reason TEXT NOT NULL,
    price TEXT NOT NULL,
    ema_fast REAL NOT NULL DEFAULT 0,
    ema_slow REAL NOT NULL DEFAULT 0,
    rsi REAL NOT NULL DEFAULT 0,
    signal TEXT NOT NULL DEFAULT 'HOLD',
    confidence REAL NOT NULL DEFAULT 0,
    trigger_source TEXT NOT NULL DEFAULT 'scheduled',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// ApplyMigrations creates the schema when missing.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
