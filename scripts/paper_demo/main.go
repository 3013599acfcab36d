package main

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"swingbot/internal/advisor"
	"swingbot/internal/engine"
	"swingbot/internal/events"
	"swingbot/internal/exec"
	"swingbot/internal/ledger"
	"swingbot/internal/stop"
	"swingbot/pkg/config"
	"swingbot/pkg/db"
)

// paper_demo runs a handful of decision cycles against the mock feed and
// an in-memory database. It does not touch the exchange or the real
// ledger file.
//
// Usage (from the repo root):
//
//	go run ./scripts/paper_demo
//
// It will:
//  1. Run cycles with a fixed BUY advisory until a position opens.
//  2. Keep cycling so the trailing stop ratchets and eventually exits.
//  3. Print the final ledger and the trade log.
func main() {
	log.Println("=== paper demo starting ===")

	cfg := &config.Config{
		Mode:               config.ModePaper,
		Pair:               "XBTUSD",
		InitialBalance:     decimal.NewFromInt(1000),
		TradeAmountPercent: decimal.NewFromInt(10),
		RetentionFactor:    decimal.RequireFromString("0.99"),
		AdvisorTimeout:     time.Second,
		Strategy:           config.DefaultStrategy(),
	}

	ctx := context.Background()

	database, err := db.New(":memory:")
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	ledgerMgr := ledger.NewManager(database, cfg.InitialBalance)
	if err := ledgerMgr.Init(ctx); err != nil {
		log.Fatalf("ledger: %v", err)
	}

	tracker, err := stop.New(cfg.RetentionFactor)
	if err != nil {
		log.Fatalf("tracker: %v", err)
	}
	backend := exec.NewPaper(database, tracker)
	feed := newTrendingFeed()
	adv := advisor.Static{Advice: advisor.Advice{Signal: advisor.SignalBuy, Confidence: 0.9, Reason: "demo"}}

	eng := engine.New(cfg, backend, feed, adv, tracker, database, events.NewBus())

	for i := 0; i < 12; i++ {
		if _, err := eng.RunCycle(ctx, engine.TriggerManual); err != nil {
			log.Printf("cycle %d: %v", i+1, err)
		}
	}

	state, err := ledgerMgr.Snapshot(ctx)
	if err != nil {
		log.Fatalf("snapshot: %v", err)
	}
	log.Printf("final ledger: cash=%s asset=%s", state.Cash, state.Asset)

	trades, err := ledgerMgr.Trades(ctx)
	if err != nil {
		log.Fatalf("trades: %v", err)
	}
	for _, t := range trades {
		if t.RealizedPnL != nil {
			log.Printf("trade %s %s @ %s (P/L %s)", t.Side, t.Qty, t.Price, t.RealizedPnL)
		} else {
			log.Printf("trade %s %s @ %s", t.Side, t.Qty, t.Price)
		}
	}

	if err := ledgerMgr.Verify(ctx); err != nil {
		log.Fatalf("audit: %v", err)
	}
	log.Println("=== ledger audit passed, demo complete ===")
}
