package exec

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swingbot/internal/stop"
	"swingbot/pkg/db"
)

// Paper simulates execution against the durable ledger: exact fills at the
// requested price, no slippage, no fees. Trades are persisted synchronously
// before returning success, so a crash right after execution never loses
// one.
type Paper struct {
	store   *db.Database
	tracker *stop.Tracker
}

func NewPaper(store *db.Database, tracker *stop.Tracker) *Paper {
	return &Paper{store: store, tracker: tracker}
}

func (p *Paper) LoadBalances(ctx context.Context) (db.LedgerState, error) {
	state, err := p.store.GetLedger(ctx)
	if err != nil {
		return db.LedgerState{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return state, nil
}

func (p *Paper) Buy(ctx context.Context, price, cashAmount decimal.Decimal) (db.TradeRecord, error) {
	state, err := p.LoadBalances(ctx)
	if err != nil {
		return db.TradeRecord{}, err
	}
	if state.HasPosition() {
		return db.TradeRecord{}, ErrPositionAlreadyOpen
	}
	if cashAmount.GreaterThan(state.Cash) {
		return db.TradeRecord{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cashAmount, state.Cash)
	}

	qty := cashAmount.Div(price)
	// Debit exactly what the quantity costs so value is conserved even
	// when the division rounds.
	spent := qty.Mul(price)
	initialStop := p.tracker.Initial(price)

	state.Cash = state.Cash.Sub(spent)
	state.Asset = state.Asset.Add(qty)
	state.EntryPrice = &price
	state.Stop = &initialStop

	trade := db.TradeRecord{
		ID:         uuid.NewString(),
		Epoch:      state.Epoch,
		Side:       db.SideBuy,
		Price:      price,
		Qty:        qty,
		CashAfter:  state.Cash,
		AssetAfter: state.Asset,
	}
	if err := p.store.SaveLedgerAndTrade(ctx, state, trade); err != nil {
		return db.TradeRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	log.Printf("PAPER BUY %s at %s for %s (stop %s)", qty, price, spent, initialStop)
	return trade, nil
}

func (p *Paper) Sell(ctx context.Context, price, assetAmount decimal.Decimal) (db.TradeRecord, error) {
	state, err := p.LoadBalances(ctx)
	if err != nil {
		return db.TradeRecord{}, err
	}
	if assetAmount.GreaterThan(state.Asset) {
		return db.TradeRecord{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientPosition, assetAmount, state.Asset)
	}

	proceeds := price.Mul(assetAmount)
	var pnl *decimal.Decimal
	if state.EntryPrice != nil {
		realized := price.Sub(*state.EntryPrice).Mul(assetAmount)
		pnl = &realized
	}

	state.Cash = state.Cash.Add(proceeds)
	state.Asset = state.Asset.Sub(assetAmount)
	if !state.HasPosition() {
		state.EntryPrice = nil
		state.Stop = nil
	}

	trade := db.TradeRecord{
		ID:          uuid.NewString(),
		Epoch:       state.Epoch,
		Side:        db.SideSell,
		Price:       price,
		Qty:         assetAmount,
		CashAfter:   state.Cash,
		AssetAfter:  state.Asset,
		RealizedPnL: pnl,
	}
	if err := p.store.SaveLedgerAndTrade(ctx, state, trade); err != nil {
		return db.TradeRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	log.Printf("PAPER SELL %s at %s for %s", assetAmount, price, proceeds)
	return trade, nil
}

func (p *Paper) UpdateStop(ctx context.Context, newStop decimal.Decimal) error {
	state, err := p.LoadBalances(ctx)
	if err != nil {
		return err
	}
	if !state.HasPosition() {
		return nil
	}
	state.Stop = &newStop
	if err := p.store.SaveLedger(ctx, state); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
