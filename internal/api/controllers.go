package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"swingbot/internal/exec"
	"swingbot/pkg/db"
)

type listCyclesQuery struct {
	Limit int `form:"limit"`
}

func (q *listCyclesQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

type resetLedgerRequest struct {
	InitialBalance string `json:"initial_balance"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":          s.Meta.Mode,
		"pair":          s.Meta.Pair,
		"use_mock_feed": s.Meta.UseMockFeed,
		"version":       s.Meta.Version,
		"halted":        s.Meta.Halted,
	})
}

func (s *Server) getLedger(c *gin.Context) {
	state, err := s.Ledger.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ledger_read_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, ledgerResponse(state))
}

func (s *Server) getTrades(c *gin.Context) {
	trades, err := s.Ledger.Trades(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "trades_read_failed", err.Error())
		return
	}
	out := make([]gin.H, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"trades": out, "count": len(out)})
}

func (s *Server) getCycles(c *gin.Context) {
	var q listCyclesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "bad_query", err.Error())
		return
	}
	q.normalize()
	cycles, err := s.DB.ListCycles(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "cycles_read_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles, "count": len(cycles)})
}

func (s *Server) runCycle(c *gin.Context) {
	if s.Meta.Halted {
		respondError(c, http.StatusConflict, "trading_halted", "ledger audit failed at startup; trading is halted")
		return
	}
	out, err := s.Sched.TriggerNow(c.Request.Context())
	resp := gin.H{
		"action":      out.Action,
		"reason":      out.Reason,
		"price":       out.Price,
		"duration_ms": out.Duration.Milliseconds(),
	}
	if out.Trade != nil {
		resp["trade"] = tradeResponse(*out.Trade)
	}
	if err != nil {
		resp["error"] = err.Error()
		status := http.StatusInternalServerError
		if errors.Is(err, exec.ErrBackendUnavailable) || errors.Is(err, exec.ErrFillNotConfirmed) {
			status = http.StatusBadGateway
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) resetLedger(c *gin.Context) {
	initial := s.Cfg.InitialBalance
	var req resetLedgerRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.InitialBalance != "" {
		parsed, parseErr := decimal.NewFromString(req.InitialBalance)
		if parseErr != nil || !parsed.IsPositive() {
			respondError(c, http.StatusBadRequest, "bad_balance", "initial_balance must be a positive number")
			return
		}
		initial = parsed
	}

	var resetErr error
	s.Sched.WithLock(func() {
		resetErr = s.Ledger.Reset(c.Request.Context(), initial)
	})
	if resetErr != nil {
		respondError(c, http.StatusInternalServerError, "reset_failed", resetErr.Error())
		return
	}

	state, err := s.Ledger.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ledger_read_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, ledgerResponse(state))
}

func ledgerResponse(state db.LedgerState) gin.H {
	resp := gin.H{
		"epoch":        state.Epoch,
		"initial_cash": state.InitialCash,
		"cash":         state.Cash,
		"asset":        state.Asset,
		"updated_at":   state.UpdatedAt,
	}
	if state.EntryPrice != nil {
		resp["entry_price"] = *state.EntryPrice
	}
	if state.Stop != nil {
		resp["trailing_stop"] = *state.Stop
	}
	return resp
}

func tradeResponse(t db.TradeRecord) gin.H {
	resp := gin.H{
		"id":          t.ID,
		"epoch":       t.Epoch,
		"side":        t.Side,
		"price":       t.Price,
		"qty":         t.Qty,
		"cash_after":  t.CashAfter,
		"asset_after": t.AssetAfter,
		"created_at":  t.CreatedAt,
	}
	if t.RealizedPnL != nil {
		resp["realized_pnl"] = *t.RealizedPnL
	}
	return resp
}
