// Package api wires the HTTP surface: webhook intake, status, admin
// endpoints, and the websocket event stream.
package api

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"hookrelay/internal/account"
	"hookrelay/internal/dispatch"
	"hookrelay/internal/events"
	"hookrelay/internal/monitor"
	"hookrelay/pkg/db"
)

// Server exposes the relay over HTTP.
type Server struct {
	Router     *gin.Engine
	Registry   *account.Registry
	Dispatcher *dispatch.Dispatcher
	Bus        *events.Bus
	DB         *db.Database
	Metrics    *monitor.Metrics
	JWTSecret  string
	Meta       SystemMeta

	active atomic.Bool
}

// SystemMeta describes runtime identity exposed on the health endpoint.
type SystemMeta struct {
	InstanceID string
	Version    string
}

// NewServer builds the router and registers all routes.
func NewServer(registry *account.Registry, dispatcher *dispatch.Dispatcher, bus *events.Bus, database *db.Database, metrics *monitor.Metrics, meta SystemMeta, jwtSecret string, active bool) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:     r,
		Registry:   registry,
		Dispatcher: dispatcher,
		Bus:        bus,
		DB:         database,
		Metrics:    metrics,
		JWTSecret:  jwtSecret,
		Meta:       meta,
	}
	s.active.Store(active)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/", s.health)
	s.Router.POST("/", s.webhook)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/orders", s.getOrders)
		api.GET("/alerts", s.getAlerts)

		admin := api.Group("")
		admin.Use(AuthMiddleware(s.JWTSecret))
		{
			admin.POST("/config", s.updateConfig)
			admin.POST("/accounts/:id/reinit", s.reinitAccount)
		}
	}
}

// Active reports whether alert execution is currently enabled.
func (s *Server) Active() bool { return s.active.Load() }

// setActive flips the execution toggle and persists it.
func (s *Server) setActive(c *gin.Context, active bool) {
	s.active.Store(active)
	if s.DB != nil {
		value := "false"
		if active {
			value = "true"
		}
		_ = s.DB.SetSetting(c.Request.Context(), "active", value)
	}
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router.Run(addr)
}
