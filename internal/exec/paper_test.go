package exec

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/stop"
	"swingbot/pkg/db"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newPaperBackend(t *testing.T, initialCash string) (*Paper, *db.Database) {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))
	require.NoError(t, database.InitLedger(context.Background(), dec(initialCash)))

	tracker, err := stop.New(dec("0.99"))
	require.NoError(t, err)
	return NewPaper(database, tracker), database
}

func TestPaperBuySetsPositionAndStop(t *testing.T) {
	backend, _ := newPaperBackend(t, "1000")
	ctx := context.Background()

	trade, err := backend.Buy(ctx, dec("50000"), dec("100"))
	require.NoError(t, err)
	assert.Equal(t, db.SideBuy, trade.Side)

	state, err := backend.LoadBalances(ctx)
	require.NoError(t, err)
	assert.True(t, state.HasPosition())
	require.NotNil(t, state.EntryPrice)
	assert.True(t, state.EntryPrice.Equal(dec("50000")))
	require.NotNil(t, state.Stop)
	assert.True(t, state.Stop.Equal(dec("49500")))

	// The debit matches qty*price exactly.
	assert.True(t, state.Cash.Add(state.Asset.Mul(dec("50000"))).Equal(dec("1000")))
}

func TestPaperBuyRejectsSecondPosition(t *testing.T) {
	backend, _ := newPaperBackend(t, "1000")
	ctx := context.Background()

	_, err := backend.Buy(ctx, dec("50000"), dec("100"))
	require.NoError(t, err)

	_, err = backend.Buy(ctx, dec("51000"), dec("100"))
	assert.ErrorIs(t, err, ErrPositionAlreadyOpen)
}

func TestPaperBuyRejectsOverdraft(t *testing.T) {
	backend, _ := newPaperBackend(t, "50")
	_, err := backend.Buy(context.Background(), dec("50000"), dec("100"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestPaperSellRealizesPnL(t *testing.T) {
	backend, _ := newPaperBackend(t, "1000")
	ctx := context.Background()

	buy, err := backend.Buy(ctx, dec("100"), dec("500"))
	require.NoError(t, err)
	assert.True(t, buy.Qty.Equal(dec("5")))

	sell, err := backend.Sell(ctx, dec("120"), buy.Qty)
	require.NoError(t, err)
	require.NotNil(t, sell.RealizedPnL)
	assert.True(t, sell.RealizedPnL.Equal(dec("100")))

	state, err := backend.LoadBalances(ctx)
	require.NoError(t, err)
	assert.False(t, state.HasPosition())
	assert.Nil(t, state.EntryPrice)
	assert.Nil(t, state.Stop)
	assert.True(t, state.Cash.Equal(dec("1100")))
}

func TestPaperSellRejectsOversell(t *testing.T) {
	backend, _ := newPaperBackend(t, "1000")
	ctx := context.Background()

	_, err := backend.Sell(ctx, dec("100"), dec("1"))
	assert.ErrorIs(t, err, ErrInsufficientPosition)

	_, err = backend.Buy(ctx, dec("100"), dec("500"))
	require.NoError(t, err)
	_, err = backend.Sell(ctx, dec("100"), dec("6"))
	assert.ErrorIs(t, err, ErrInsufficientPosition)
}

func TestPaperUpdateStop(t *testing.T) {
	backend, _ := newPaperBackend(t, "1000")
	ctx := context.Background()

	// Without a position the call is a no-op.
	require.NoError(t, backend.UpdateStop(ctx, dec("99")))
	state, err := backend.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.Stop)

	_, err = backend.Buy(ctx, dec("100"), dec("500"))
	require.NoError(t, err)
	require.NoError(t, backend.UpdateStop(ctx, dec("108.9")))

	state, err = backend.LoadBalances(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.Stop)
	assert.True(t, state.Stop.Equal(dec("108.9")))
}

func TestPaperTradesSurviveReload(t *testing.T) {
	backend, database := newPaperBackend(t, "1000")
	ctx := context.Background()

	_, err := backend.Buy(ctx, dec("100"), dec("300"))
	require.NoError(t, err)
	_, err = backend.Sell(ctx, dec("110"), dec("3"))
	require.NoError(t, err)

	state, err := database.GetLedger(ctx)
	require.NoError(t, err)
	trades, err := database.ListTrades(ctx, state.Epoch)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, db.SideBuy, trades[0].Side)
	assert.Equal(t, db.SideSell, trades[1].Side)
	assert.True(t, trades[1].CashAfter.Equal(state.Cash))
}
