package exec

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swingbot/internal/stop"
	"swingbot/pkg/db"
	"swingbot/pkg/exchanges/kraken"
)

// Kraken ledger asset codes for the traded pair.
const (
	baseAsset  = "XXBT"
	quoteAsset = "ZUSD"
)

const defaultFillPoll = 2 * time.Second

// Live places real orders on the venue. The requested price is a target:
// after placement the actual fill is re-read from the venue before the
// trade record is written. Any non-full fill within the confirmation
// window is treated as a retryable failure and leaves the ledger untouched.
//
// The local ledger is the book of record for cash and asset: the engine
// trades against it and the audit replays it from the epoch baseline.
// Venue balances seed that baseline at the start of an epoch and serve as
// a drift check afterwards, never as the snapshot itself.
type Live struct {
	store         *db.Database
	tracker       *stop.Tracker
	venue         *kraken.Client
	pair          string
	confirmWindow time.Duration
	fillPoll      time.Duration
}

func NewLive(store *db.Database, tracker *stop.Tracker, venue *kraken.Client, pair string, confirmWindow time.Duration) *Live {
	return &Live{
		store:         store,
		tracker:       tracker,
		venue:         venue,
		pair:          pair,
		confirmWindow: confirmWindow,
		fillPoll:      defaultFillPoll,
	}
}

// SeedFromVenue aligns the epoch's starting cash with the venue's quote
// balance. It only acts while the epoch has no trades; once a trade is on
// record the baseline is frozen so replay stays reproducible. Asset
// holdings are never seeded: a position the bot did not open has no entry
// price and is not the bot's to manage.
func (l *Live) SeedFromVenue(ctx context.Context) error {
	state, err := l.store.GetLedger(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	trades, err := l.store.ListTrades(ctx, state.Epoch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(trades) > 0 {
		return nil
	}

	balances, err := l.venue.Balance(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	venueCash := balances[quoteAsset]
	if venueCash.Equal(state.InitialCash) {
		return nil
	}
	if err := l.store.SeedLedgerBaseline(ctx, venueCash); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	log.Printf("ledger baseline seeded from venue: %s %s (was %s)", quoteAsset, venueCash, state.InitialCash)
	return nil
}

// LoadBalances returns the local ledger snapshot. The venue is read in the
// same call as a reconciliation check: drift between venue and ledger (fees,
// deposits, manual trades) is logged but never written back, since the
// snapshot must stay reproducible from the trade log.
func (l *Live) LoadBalances(ctx context.Context) (db.LedgerState, error) {
	state, err := l.store.GetLedger(ctx)
	if err != nil {
		return db.LedgerState{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	balances, err := l.venue.Balance(ctx)
	if err != nil {
		return db.LedgerState{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if venueCash := balances[quoteAsset]; !venueCash.Equal(state.Cash) {
		log.Printf("venue drift: %s %s on venue vs %s in ledger", quoteAsset, venueCash, state.Cash)
	}
	if venueAsset := balances[baseAsset]; !venueAsset.Equal(state.Asset) {
		log.Printf("venue drift: %s %s on venue vs %s in ledger", baseAsset, venueAsset, state.Asset)
	}
	return state, nil
}

func (l *Live) Buy(ctx context.Context, price, cashAmount decimal.Decimal) (db.TradeRecord, error) {
	state, err := l.LoadBalances(ctx)
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
	txid, err := l.venue.AddOrder(ctx, kraken.OrderRequest{
		Pair:      l.pair,
		Side:      "buy",
		OrderType: "limit",
		Price:     price,
		Volume:    qty,
	})
	if err != nil {
		return db.TradeRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	info, err := l.awaitFill(ctx, txid)
	if err != nil {
		return db.TradeRecord{}, err
	}

	fillPrice := info.AvgPrice
	if fillPrice.IsZero() {
		fillPrice = price
	}
	fillQty := info.VolumeExec
	initialStop := l.tracker.Initial(fillPrice)

	state.Cash = state.Cash.Sub(fillQty.Mul(fillPrice))
	state.Asset = state.Asset.Add(fillQty)
	state.EntryPrice = &fillPrice
	state.Stop = &initialStop

	trade := db.TradeRecord{
		ID:         uuid.NewString(),
		Epoch:      state.Epoch,
		Side:       db.SideBuy,
		Price:      fillPrice,
		Qty:        fillQty,
		CashAfter:  state.Cash,
		AssetAfter: state.Asset,
	}
	if err := l.store.SaveLedgerAndTrade(ctx, state, trade); err != nil {
		return db.TradeRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	log.Printf("LIVE BUY %s at %s (txid %s, stop %s)", fillQty, fillPrice, txid, initialStop)
	return trade, nil
}

func (l *Live) Sell(ctx context.Context, price, assetAmount decimal.Decimal) (db.TradeRecord, error) {
	state, err := l.LoadBalances(ctx)
	if err != nil {
		return db.TradeRecord{}, err
	}
	if assetAmount.GreaterThan(state.Asset) {
		return db.TradeRecord{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientPosition, assetAmount, state.Asset)
	}

	// Market order: exits must not rest on the book while price falls.
	txid, err := l.venue.AddOrder(ctx, kraken.OrderRequest{
		Pair:      l.pair,
		Side:      "sell",
		OrderType: "market",
		Volume:    assetAmount,
	})
	if err != nil {
		return db.TradeRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	info, err := l.awaitFill(ctx, txid)
	if err != nil {
		return db.TradeRecord{}, err
	}

	fillPrice := info.AvgPrice
	if fillPrice.IsZero() {
		fillPrice = price
	}
	fillQty := info.VolumeExec

	var pnl *decimal.Decimal
	if state.EntryPrice != nil {
		realized := fillPrice.Sub(*state.EntryPrice).Mul(fillQty)
		pnl = &realized
	}

	state.Cash = state.Cash.Add(fillQty.Mul(fillPrice))
	state.Asset = state.Asset.Sub(fillQty)
	if !state.HasPosition() {
		state.EntryPrice = nil
		state.Stop = nil
	}

	trade := db.TradeRecord{
		ID:          uuid.NewString(),
		Epoch:       state.Epoch,
		Side:        db.SideSell,
		Price:       fillPrice,
		Qty:         fillQty,
		CashAfter:   state.Cash,
		AssetAfter:  state.Asset,
		RealizedPnL: pnl,
	}
	if err := l.store.SaveLedgerAndTrade(ctx, state, trade); err != nil {
		return db.TradeRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	log.Printf("LIVE SELL %s at %s (txid %s)", fillQty, fillPrice, txid)
	return trade, nil
}

func (l *Live) UpdateStop(ctx context.Context, newStop decimal.Decimal) error {
	state, err := l.store.GetLedger(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	state.Stop = &newStop
	if err := l.store.SaveLedger(ctx, state); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// awaitFill polls the venue until the order is fully filled or the
// confirmation window expires.
func (l *Live) awaitFill(ctx context.Context, txid string) (kraken.OrderInfo, error) {
	deadline := time.Now().Add(l.confirmWindow)
	ticker := time.NewTicker(l.fillPoll)
	defer ticker.Stop()

	for {
		info, err := l.venue.QueryOrder(ctx, txid)
		if err != nil {
			return kraken.OrderInfo{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if info.FullyFilled() {
			return info, nil
		}
		switch info.Status {
		case "canceled", "expired":
			return kraken.OrderInfo{}, fmt.Errorf("%w: order %s %s with %s of %s executed",
				ErrFillNotConfirmed, txid, info.Status, info.VolumeExec, info.Volume)
		}
		if time.Now().After(deadline) {
			return kraken.OrderInfo{}, fmt.Errorf("%w: order %s still %s after %s",
				ErrFillNotConfirmed, txid, info.Status, l.confirmWindow)
		}

		select {
		case <-ctx.Done():
			return kraken.OrderInfo{}, fmt.Errorf("%w: %v", ErrFillNotConfirmed, ctx.Err())
		case <-ticker.C:
		}
	}
}
