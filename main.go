package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"swingbot/internal/advisor"
	"swingbot/internal/api"
	"swingbot/internal/engine"
	"swingbot/internal/events"
	"swingbot/internal/exec"
	"swingbot/internal/ledger"
	"swingbot/internal/market"
	"swingbot/internal/monitor"
	"swingbot/internal/scheduler"
	"swingbot/internal/stop"
	"swingbot/pkg/config"
	"swingbot/pkg/db"
	"swingbot/pkg/exchanges/kraken"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting swingbot mode=%s pair=%s port=%s", cfg.Mode, cfg.Pair, cfg.Port)

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}
	log.Printf("using db path %s", cfg.DBPath)

	// Ledger seeded from DB, then audited against the trade log. An
	// inconsistent ledger halts trading but keeps the read API up.
	ledgerMgr := ledger.NewManager(database, cfg.InitialBalance)
	if err := ledgerMgr.Init(ctx); err != nil {
		log.Fatalf("ledger init failed: %v", err)
	}
	halted := false
	if err := ledgerMgr.Verify(ctx); err != nil {
		if !errors.Is(err, ledger.ErrInconsistentLedger) {
			log.Fatalf("ledger audit failed: %v", err)
		}
		halted = true
		log.Printf("LEDGER AUDIT FAILED, trading halted: %v", err)
	}

	tracker, err := stop.New(cfg.RetentionFactor)
	if err != nil {
		log.Fatalf("trailing stop config invalid: %v", err)
	}

	// Venue client. Paper mode still uses Kraken public market data unless
	// the mock feed is enabled.
	var venue *kraken.Client
	if cfg.Mode == config.ModeLive || !cfg.UseMockFeed {
		venue = kraken.New(kraken.Config{
			APIKey:    cfg.KrakenAPIKey,
			APISecret: cfg.KrakenAPISecret,
			BaseURL:   cfg.KrakenBaseURL,
			Timeout:   cfg.VenueTimeout,
		})
	}

	var source market.Source
	if cfg.UseMockFeed {
		source = market.NewMockFeed(0, 0, 0, 1)
		log.Println("mock feed enabled")
	} else {
		source = market.NewKrakenSource(venue, cfg.Pair, cfg.OHLCInterval)
	}

	backend, err := exec.New(cfg, database, tracker, venue)
	if err != nil {
		log.Fatalf("execution backend init failed: %v", err)
	}
	// A fresh epoch in live mode takes its replay baseline from the venue's
	// actual cash, so the startup audit stays meaningful across restarts.
	if live, ok := backend.(*exec.Live); ok && !halted {
		if err := live.SeedFromVenue(ctx); err != nil {
			log.Fatalf("ledger baseline seed failed: %v", err)
		}
	}

	var advSource advisor.Source
	if cfg.AdvisorAPIKey != "" {
		advSource = advisor.NewOpenAI(cfg.AdvisorURL, cfg.AdvisorAPIKey, cfg.AdvisorModel, cfg.AdvisorTimeout)
		log.Printf("advisory source: %s model=%s", cfg.AdvisorURL, cfg.AdvisorModel)
	} else {
		advSource = advisor.Static{Advice: advisor.Advice{Signal: advisor.SignalHold, Confidence: 0, Reason: "no advisory source configured"}}
		log.Println("advisory source: none, holding unless the stop triggers")
	}

	eng := engine.New(cfg, backend, source, advSource, tracker, database, bus)
	sched := scheduler.New(eng, cfg.CycleInterval)

	// Alerts
	var sink monitor.AlertSink = monitor.LogSink{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		sink = monitor.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		log.Println("telegram alerts enabled")
	}
	mon := &monitor.Monitor{Bus: bus, Sink: sink}
	mon.Start(ctx)

	if halted {
		bus.Publish(events.TopicAlert, events.Alert{
			Kind:    "error",
			Message: "ledger audit failed at startup, trading halted",
		})
	} else {
		sched.Start(ctx)
		bus.Publish(events.TopicAlert, events.Alert{
			Kind:    "startup",
			Message: "swingbot started, mode=" + string(cfg.Mode) + " pair=" + cfg.Pair,
		})
	}

	// API
	server := api.NewServer(bus, database, ledgerMgr, sched, cfg, api.SystemMeta{
		Mode:        cfg.Mode,
		Pair:        cfg.Pair,
		UseMockFeed: cfg.UseMockFeed,
		Version:     buildVersion,
		Halted:      halted,
	})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	bus.Publish(events.TopicAlert, events.Alert{Kind: "shutdown", Message: "swingbot stopping"})
	if !halted {
		sched.Stop()
	}
	cancel()
}
