package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/ledger"
	"swingbot/internal/stop"
	"swingbot/pkg/db"
	"swingbot/pkg/exchanges/kraken"
)

type fakeOrder struct {
	status   string
	vol      string
	volExec  string
	avgPrice string
}

// fakeVenue is an in-process Kraken stand-in: it serves balances and plays
// back scripted order outcomes, one per AddOrder call.
type fakeVenue struct {
	mu       sync.Mutex
	balances map[string]string
	pending  []fakeOrder
	orders   map[string]fakeOrder
	seq      int
}

func newFakeVenue(balances map[string]string) *fakeVenue {
	return &fakeVenue{
		balances: balances,
		orders:   make(map[string]fakeOrder),
	}
}

func (f *fakeVenue) queue(o fakeOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, o)
}

func (f *fakeVenue) setBalance(asset, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[asset] = amount
}

func (f *fakeVenue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/0/private/Balance":
		writeResult(w, f.balances)
	case "/0/private/AddOrder":
		if len(f.pending) == 0 {
			http.Error(w, "no scripted order", http.StatusInternalServerError)
			return
		}
		f.seq++
		txid := fmt.Sprintf("OTXID-%d", f.seq)
		f.orders[txid] = f.pending[0]
		f.pending = f.pending[1:]
		writeResult(w, map[string]any{"txid": []string{txid}})
	case "/0/private/QueryOrders":
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		txid := r.PostForm.Get("txid")
		order, ok := f.orders[txid]
		if !ok {
			http.Error(w, "unknown order", http.StatusNotFound)
			return
		}
		writeResult(w, map[string]any{txid: map[string]string{
			"status":   order.status,
			"vol":      order.vol,
			"vol_exec": order.volExec,
			"price":    order.avgPrice,
		}})
	default:
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"error": []string{}, "result": result})
}

func newLiveBackend(t *testing.T, venue *fakeVenue, initialCash string) (*Live, *db.Database) {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))
	require.NoError(t, database.InitLedger(context.Background(), dec(initialCash)))

	srv := httptest.NewServer(venue)
	t.Cleanup(srv.Close)

	client := kraken.New(kraken.Config{
		APIKey:    "test-key",
		APISecret: "dGVzdC1zZWNyZXQ=",
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
	})
	live := NewLive(database, mustTracker(t), client, "XBTUSD", time.Minute)
	live.fillPoll = time.Millisecond
	return live, database
}

func mustTracker(t *testing.T) *stop.Tracker {
	t.Helper()
	tracker, err := stop.New(dec("0.99"))
	require.NoError(t, err)
	return tracker
}

func TestLiveBuyFullFill(t *testing.T) {
	venue := newFakeVenue(map[string]string{"ZUSD": "1000", "XXBT": "0"})
	venue.queue(fakeOrder{status: "closed", vol: "2", volExec: "2", avgPrice: "100"})
	backend, database := newLiveBackend(t, venue, "1000")
	ctx := context.Background()

	trade, err := backend.Buy(ctx, dec("100"), dec("200"))
	require.NoError(t, err)
	assert.Equal(t, db.SideBuy, trade.Side)
	assert.True(t, trade.Qty.Equal(dec("2")))
	assert.True(t, trade.Price.Equal(dec("100")))

	state, err := database.GetLedger(ctx)
	require.NoError(t, err)
	assert.True(t, state.Cash.Equal(dec("800")))
	assert.True(t, state.Asset.Equal(dec("2")))
	require.NotNil(t, state.EntryPrice)
	assert.True(t, state.EntryPrice.Equal(dec("100")))
	require.NotNil(t, state.Stop)
	assert.True(t, state.Stop.Equal(dec("99")))

	// The persisted snapshot replays cleanly from the trade log.
	require.NoError(t, ledger.NewManager(database, dec("1000")).Verify(ctx))
}

func TestLiveSeedFromVenueRebasesEpochCash(t *testing.T) {
	// The venue account holds more cash than the configured starting
	// balance (pre-existing funds, deposits). The epoch baseline follows
	// the venue so the audit replay still reproduces every snapshot.
	venue := newFakeVenue(map[string]string{"ZUSD": "5000", "XXBT": "0"})
	venue.queue(fakeOrder{status: "closed", vol: "2", volExec: "2", avgPrice: "100"})
	backend, database := newLiveBackend(t, venue, "1000")
	ctx := context.Background()

	require.NoError(t, backend.SeedFromVenue(ctx))

	state, err := database.GetLedger(ctx)
	require.NoError(t, err)
	assert.True(t, state.InitialCash.Equal(dec("5000")))
	assert.True(t, state.Cash.Equal(dec("5000")))

	_, err = backend.Buy(ctx, dec("100"), dec("200"))
	require.NoError(t, err)

	state, err = database.GetLedger(ctx)
	require.NoError(t, err)
	assert.True(t, state.Cash.Equal(dec("4800")))
	assert.True(t, state.Asset.Equal(dec("2")))

	require.NoError(t, ledger.NewManager(database, dec("1000")).Verify(ctx))
}

func TestLiveSeedFromVenueFrozenAfterFirstTrade(t *testing.T) {
	venue := newFakeVenue(map[string]string{"ZUSD": "1000", "XXBT": "0"})
	venue.queue(fakeOrder{status: "closed", vol: "1", volExec: "1", avgPrice: "100"})
	backend, database := newLiveBackend(t, venue, "1000")
	ctx := context.Background()

	_, err := backend.Buy(ctx, dec("100"), dec("100"))
	require.NoError(t, err)

	// A deposit landing after the first trade must not move the replay
	// baseline mid-epoch.
	venue.setBalance("ZUSD", "9000")
	require.NoError(t, backend.SeedFromVenue(ctx))

	state, err := database.GetLedger(ctx)
	require.NoError(t, err)
	assert.True(t, state.InitialCash.Equal(dec("1000")))
	assert.True(t, state.Cash.Equal(dec("900")))
}

func TestLiveVenueDriftLeavesSnapshotAlone(t *testing.T) {
	venue := newFakeVenue(map[string]string{"ZUSD": "1000", "XXBT": "0"})
	backend, database := newLiveBackend(t, venue, "1000")
	ctx := context.Background()

	venue.setBalance("ZUSD", "650")
	venue.setBalance("XXBT", "0.5")

	state, err := backend.LoadBalances(ctx)
	require.NoError(t, err)
	assert.True(t, state.Cash.Equal(dec("1000")))
	assert.True(t, state.Asset.Equal(dec("0")))

	stored, err := database.GetLedger(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Cash.Equal(dec("1000")))
}

func TestLiveBuyPartialCancelLeavesLedgerUntouched(t *testing.T) {
	venue := newFakeVenue(map[string]string{"ZUSD": "1000", "XXBT": "0"})
	venue.queue(fakeOrder{status: "canceled", vol: "2", volExec: "1", avgPrice: "100"})
	backend, database := newLiveBackend(t, venue, "1000")
	ctx := context.Background()

	_, err := backend.Buy(ctx, dec("100"), dec("200"))
	require.ErrorIs(t, err, ErrFillNotConfirmed)

	state, err := database.GetLedger(ctx)
	require.NoError(t, err)
	assert.True(t, state.Cash.Equal(dec("1000")))
	assert.True(t, state.Asset.Equal(dec("0")))
	assert.Nil(t, state.EntryPrice)

	trades, err := database.ListTrades(ctx, state.Epoch)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestLiveBuyConfirmWindowExpires(t *testing.T) {
	venue := newFakeVenue(map[string]string{"ZUSD": "1000", "XXBT": "0"})
	venue.queue(fakeOrder{status: "open", vol: "2", volExec: "0", avgPrice: "0"})
	backend, database := newLiveBackend(t, venue, "1000")
	backend.confirmWindow = time.Millisecond
	ctx := context.Background()

	_, err := backend.Buy(ctx, dec("100"), dec("200"))
	require.ErrorIs(t, err, ErrFillNotConfirmed)

	state, err := database.GetLedger(ctx)
	require.NoError(t, err)
	assert.True(t, state.Cash.Equal(dec("1000")))
	trades, err := database.ListTrades(ctx, state.Epoch)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestLiveBuyContextCanceledDuringConfirm(t *testing.T) {
	venue := newFakeVenue(map[string]string{"ZUSD": "1000", "XXBT": "0"})
	venue.queue(fakeOrder{status: "open", vol: "2", volExec: "0", avgPrice: "0"})
	backend, database := newLiveBackend(t, venue, "1000")
	backend.fillPoll = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := backend.Buy(ctx, dec("100"), dec("200"))
	require.ErrorIs(t, err, ErrFillNotConfirmed)

	state, err := database.GetLedger(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Cash.Equal(dec("1000")))
}

func TestLiveSellRealizesPnLFromLocalEntry(t *testing.T) {
	venue := newFakeVenue(map[string]string{"ZUSD": "1000", "XXBT": "0"})
	venue.queue(fakeOrder{status: "closed", vol: "2", volExec: "2", avgPrice: "100"})
	venue.queue(fakeOrder{status: "closed", vol: "2", volExec: "2", avgPrice: "120"})
	backend, database := newLiveBackend(t, venue, "1000")
	ctx := context.Background()

	_, err := backend.Buy(ctx, dec("100"), dec("200"))
	require.NoError(t, err)

	sell, err := backend.Sell(ctx, dec("120"), dec("2"))
	require.NoError(t, err)
	require.NotNil(t, sell.RealizedPnL)
	assert.True(t, sell.RealizedPnL.Equal(dec("40")))

	state, err := database.GetLedger(ctx)
	require.NoError(t, err)
	assert.False(t, state.HasPosition())
	assert.True(t, state.Cash.Equal(dec("1040")))
	assert.Nil(t, state.EntryPrice)
	assert.Nil(t, state.Stop)

	require.NoError(t, ledger.NewManager(database, dec("1000")).Verify(ctx))
}
