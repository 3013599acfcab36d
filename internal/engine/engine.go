// Package engine implements the decision cycle: one pass over market data,
// balances, indicators and the advisory signal, ending in exactly one of
// BUY, SELL or HOLD.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"swingbot/internal/advisor"
	"swingbot/internal/events"
	"swingbot/internal/exec"
	"swingbot/internal/indicators"
	"swingbot/internal/market"
	"swingbot/internal/stop"
	"swingbot/pkg/config"
	"swingbot/pkg/db"
)

// Action is the final decision of a cycle.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Trigger sources recorded with each cycle.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// nearStopFraction: when the gap between price and stop shrinks below this
// fraction of the full stop distance, a warning alert is emitted.
const nearStopFraction = 0.1

// Outcome summarizes a completed cycle.
type Outcome struct {
	Action   Action
	Reason   string
	Price    decimal.Decimal
	Features indicators.FeatureVector
	Advice   advisor.Advice
	Trade    *db.TradeRecord
	Duration time.Duration
}

// Engine runs decision cycles. It owns no goroutines; the scheduler and the
// operator API call RunCycle under their shared lock.
type Engine struct {
	cfg     *config.Config
	backend exec.Backend
	source  market.Source
	advice  advisor.Source
	tracker *stop.Tracker
	store   *db.Database
	bus     *events.Bus
}

func New(cfg *config.Config, backend exec.Backend, source market.Source, advice advisor.Source, tracker *stop.Tracker, store *db.Database, bus *events.Bus) *Engine {
	return &Engine{
		cfg:     cfg,
		backend: backend,
		source:  source,
		advice:  advice,
		tracker: tracker,
		store:   store,
		bus:     bus,
	}
}

// RunCycle executes one decision cycle. The trailing-stop check runs before
// the advisory call so an exit never waits on a slow or failing advisor.
// Indicator or advisory failures degrade the cycle to HOLD instead of
// failing it.
func (e *Engine) RunCycle(ctx context.Context, trigger string) (Outcome, error) {
	start := time.Now()

	out, err := e.decide(ctx)
	out.Duration = time.Since(start)

	rec := db.CycleRecord{
		Action:     string(out.Action),
		Reason:     out.Reason,
		Price:      out.Price,
		EMAFast:    out.Features.EMAFast,
		EMASlow:    out.Features.EMASlow,
		RSI:        out.Features.RSI,
		Signal:     string(out.Advice.Signal),
		Confidence: out.Advice.Confidence,
		Trigger:    trigger,
		DurationMS: out.Duration.Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
		e.bus.Publish(events.TopicAlert, events.Alert{
			Kind:    "error",
			Message: fmt.Sprintf("cycle failed: %v", err),
		})
	}
	if dbErr := e.store.AppendCycle(ctx, rec); dbErr != nil {
		log.Printf("engine: record cycle: %v", dbErr)
	}

	e.bus.Publish(events.TopicCycleCompleted, events.CycleCompleted{
		Action: string(out.Action),
		Reason: out.Reason,
		Price:  out.Price,
	})
	log.Printf("engine: cycle done action=%s reason=%q price=%s trigger=%s took=%s",
		out.Action, out.Reason, out.Price, trigger, out.Duration.Round(time.Millisecond))
	return out, err
}

func (e *Engine) decide(ctx context.Context) (Outcome, error) {
	out := Outcome{Action: ActionHold}

	price, err := e.source.CurrentPrice(ctx)
	if err != nil {
		out.Reason = "market data unavailable"
		return out, fmt.Errorf("current price: %w", err)
	}
	out.Price = price

	state, err := e.backend.LoadBalances(ctx)
	if err != nil {
		out.Reason = "balances unavailable"
		return out, fmt.Errorf("load balances: %w", err)
	}

	// Stop path first. It depends only on price and the stored stop, so a
	// broken indicator feed or advisor can never delay an exit.
	if state.HasPosition() && state.Stop != nil && e.tracker.Triggered(price, *state.Stop) {
		return e.sell(ctx, out, state, "trailing stop triggered")
	}

	closes, err := e.source.CloseHistory(ctx)
	if err != nil {
		out.Reason = "price history unavailable"
		return e.hold(ctx, out, state, out.Reason), fmt.Errorf("close history: %w", err)
	}
	features, err := indicators.Analyze(closes, e.cfg.Strategy)
	if err != nil {
		if errors.Is(err, indicators.ErrInsufficientHistory) {
			out.Reason = "insufficient price history"
			return e.hold(ctx, out, state, out.Reason), nil
		}
		out.Reason = "indicator computation failed"
		return e.hold(ctx, out, state, out.Reason), fmt.Errorf("analyze: %w", err)
	}
	out.Features = features

	advCtx, cancel := context.WithTimeout(ctx, e.cfg.AdvisorTimeout)
	advice, err := e.advice.Evaluate(advCtx, advisor.Request{
		Price:    price,
		Features: features,
		Cash:     state.Cash,
		Asset:    state.Asset,
	})
	cancel()
	if err != nil {
		out.Reason = "advisory signal unavailable"
		return e.hold(ctx, out, state, out.Reason), nil
	}
	out.Advice = advice

	if state.HasPosition() {
		if advice.Signal == advisor.SignalSell && !features.TrendUp() && features.RSI < e.cfg.Strategy.SellRSIBelow {
			return e.sell(ctx, out, state, "sell signal confirmed by trend and momentum")
		}
		return e.hold(ctx, out, state, "position held, exit conditions not met"), nil
	}

	if !features.TrendUp() {
		return e.hold(ctx, out, state, "trend not up"), nil
	}
	if features.RSI < e.cfg.Strategy.BuyRSIMin || features.RSI > e.cfg.Strategy.BuyRSIMax {
		return e.hold(ctx, out, state, "RSI outside entry band"), nil
	}
	if advice.Signal != advisor.SignalBuy {
		return e.hold(ctx, out, state, "advisory signal not BUY"), nil
	}
	size := e.tradeSize(state.Cash)
	if !size.IsPositive() {
		return e.hold(ctx, out, state, "insufficient cash after reserve"), nil
	}
	return e.buy(ctx, out, size)
}

func (e *Engine) buy(ctx context.Context, out Outcome, size decimal.Decimal) (Outcome, error) {
	trade, err := e.backend.Buy(ctx, out.Price, size)
	if err != nil {
		out.Reason = "buy rejected"
		return out, fmt.Errorf("buy: %w", err)
	}
	out.Action = ActionBuy
	out.Reason = "entry conditions met"
	out.Trade = &trade
	e.publishTrade(trade)
	return out, nil
}

func (e *Engine) sell(ctx context.Context, out Outcome, state db.LedgerState, reason string) (Outcome, error) {
	trade, err := e.backend.Sell(ctx, out.Price, state.Asset)
	if err != nil {
		out.Reason = "sell rejected"
		return out, fmt.Errorf("sell: %w", err)
	}
	out.Action = ActionSell
	out.Reason = reason
	out.Trade = &trade
	e.publishTrade(trade)
	return out, nil
}

// hold finalizes a HOLD cycle. With an open position the trailing stop
// still ratchets upward and is persisted, so a later restart resumes from
// the highest stop ever reached.
func (e *Engine) hold(ctx context.Context, out Outcome, state db.LedgerState, reason string) Outcome {
	out.Action = ActionHold
	out.Reason = reason
	if !state.HasPosition() || state.Stop == nil {
		return out
	}

	advanced := e.tracker.Advance(*state.Stop, out.Price)
	if advanced.GreaterThan(*state.Stop) {
		if err := e.backend.UpdateStop(ctx, advanced); err != nil {
			log.Printf("engine: persist stop: %v", err)
		} else {
			e.bus.Publish(events.TopicStopMoved, events.StopMoved{Price: out.Price, Stop: advanced})
		}
	}

	// Warn when the remaining room above the stop has shrunk to a sliver
	// of the full stop distance.
	gap := out.Price.Sub(advanced)
	full := out.Price.Sub(out.Price.Mul(e.cfg.RetentionFactor))
	if full.IsPositive() && gap.LessThan(full.Mul(decimal.NewFromFloat(nearStopFraction))) {
		e.bus.Publish(events.TopicAlert, events.Alert{
			Kind:    "near-stop",
			Message: fmt.Sprintf("price %s is close to trailing stop %s", out.Price, advanced),
		})
	}
	return out
}

// tradeSize is the cash to commit on a buy: the fixed amount when
// configured, otherwise a percentage of cash, always capped by what is
// left after the reserve.
func (e *Engine) tradeSize(cash decimal.Decimal) decimal.Decimal {
	size := e.cfg.TradeAmount
	if !size.IsPositive() {
		size = cash.Mul(e.cfg.TradeAmountPercent).Div(decimal.NewFromInt(100))
	}
	reserve := e.cfg.MinReserve
	if !reserve.IsPositive() && e.cfg.MinReservePercent.IsPositive() {
		reserve = cash.Mul(e.cfg.MinReservePercent).Div(decimal.NewFromInt(100))
	}
	spendable := cash.Sub(reserve)
	if size.GreaterThan(spendable) {
		// Not enough cash for the configured size: hold rather than
		// entering with a shrunken position.
		return decimal.Zero
	}
	return size
}

func (e *Engine) publishTrade(trade db.TradeRecord) {
	e.bus.Publish(events.TopicTradeExecuted, events.TradeExecuted{
		Side:        string(trade.Side),
		Price:       trade.Price,
		Qty:         trade.Qty,
		RealizedPnL: trade.RealizedPnL,
	})
	msg := fmt.Sprintf("%s %s @ %s", trade.Side, trade.Qty, trade.Price)
	if trade.RealizedPnL != nil {
		msg += fmt.Sprintf(" (P/L %s)", trade.RealizedPnL)
	}
	e.bus.Publish(events.TopicAlert, events.Alert{Kind: "trade", Message: msg})
}
