package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side denotes trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// LedgerState is the durable snapshot of balances and open-position
// metadata. EntryPrice and TrailingStop are present iff Asset > 0.
type LedgerState struct {
	Epoch       int64
	InitialCash decimal.Decimal
	Cash        decimal.Decimal
	Asset       decimal.Decimal
	EntryPrice  *decimal.Decimal
	Stop        *decimal.Decimal
	UpdatedAt   time.Time
}

// HasPosition reports whether an asset position is currently open.
func (s LedgerState) HasPosition() bool {
	return s.Asset.IsPositive()
}

// TradeRecord is one row of the append-only trade log.
type TradeRecord struct {
	ID          string
	Epoch       int64
	Side        Side
	Price       decimal.Decimal
	Qty         decimal.Decimal
	CashAfter   decimal.Decimal
	AssetAfter  decimal.Decimal
	RealizedPnL *decimal.Decimal // SELL only
	CreatedAt   time.Time
}

// CycleRecord captures the outcome of one decision cycle for audit.
type CycleRecord struct {
	ID         int64
	Action     string
	Reason     string
	Price      decimal.Decimal
	EMAFast    float64
	EMASlow    float64
	RSI        float64
	Signal     string
	Confidence float64
	Trigger    string
	DurationMS int64
	Error      string
	CreatedAt  time.Time
}
