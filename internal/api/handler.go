// Package api exposes the operator surface over HTTP: cycle trigger,
// ledger and trade reads, cycle history, and ledger reset.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swingbot/internal/events"
	"swingbot/internal/ledger"
	"swingbot/internal/scheduler"
	"swingbot/pkg/config"
	"swingbot/pkg/db"
)

// Server wires HTTP endpoints around the engine.
type Server struct {
	Router *gin.Engine
	Bus    *events.Bus
	DB     *db.Database
	Ledger *ledger.Manager
	Sched  *scheduler.Scheduler
	Cfg    *config.Config
	Meta   SystemMeta
}

// SystemMeta describes runtime status exposed to the operator.
type SystemMeta struct {
	Mode        config.Mode
	Pair        string
	UseMockFeed bool
	Version     string
	// Halted is set when the startup audit found the ledger inconsistent;
	// trading is stopped but the read endpoints stay up.
	Halted bool
}

func NewServer(bus *events.Bus, database *db.Database, ledgerMgr *ledger.Manager, sched *scheduler.Scheduler, cfg *config.Config, meta SystemMeta) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(60 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router: r,
		Bus:    bus,
		DB:     database,
		Ledger: ledgerMgr,
		Sched:  sched,
		Cfg:    cfg,
		Meta:   meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/ledger", s.getLedger)
		api.GET("/trades", s.getTrades)
		api.GET("/cycles", s.getCycles)
		api.POST("/cycle/run", s.runCycle)
		api.POST("/ledger/reset", s.resetLedger)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
