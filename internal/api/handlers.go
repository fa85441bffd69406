package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// webhookPayload is the JSON body form; a raw text body works too.
type webhookPayload struct {
	Message string `json:"message"`
}

// health reports liveness and the execution toggle.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"active":      s.Active(),
		"instance_id": s.Meta.InstanceID,
		"version":     s.Meta.Version,
	})
}

// webhook ingests a signal payload. Processing is asynchronous: the
// sender gets an ack as soon as the payload is accepted, mirroring how
// alert providers expect webhooks to respond fast.
func (s *Server) webhook(c *gin.Context) {
	if !s.Active() {
		c.JSON(http.StatusOK, gin.H{"status": "inactive"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	message := string(body)
	if c.ContentType() == "application/json" {
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing message field"})
			return
		}
		message = payload.Message
	}
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty payload"})
		return
	}

	// Detach from the request context: the dispatch outlives this
	// HTTP exchange, and an in-flight order must not be canceled by
	// the sender hanging up or by any deadline of ours. The gateway's
	// per-request HTTP timeout is the only timer on the submit path.
	ctx := context.WithoutCancel(c.Request.Context())
	go s.Dispatcher.Dispatch(ctx, message)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// updateConfig flips the execution toggle.
func (s *Server) updateConfig(c *gin.Context) {
	var body struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'active' key"})
		return
	}

	s.setActive(c, *body.Active)
	log.Info().Bool("active", *body.Active).Msg("execution toggle updated")
	c.JSON(http.StatusOK, gin.H{"active": *body.Active})
}

// getStatus renders every account's cached positions and health.
func (s *Server) getStatus(c *gin.Context) {
	type positionView struct {
		Symbol        string  `json:"symbol"`
		Side          string  `json:"side"`
		Contracts     float64 `json:"contracts"`
		UnrealizedPnl float64 `json:"unrealized_pnl"`
	}
	type accountView struct {
		ID          string         `json:"id"`
		Exchange    string         `json:"exchange"`
		Settle      string         `json:"settle"`
		Degraded    bool           `json:"degraded"`
		Reason      string         `json:"degraded_reason,omitempty"`
		LastRefresh *time.Time     `json:"last_refresh,omitempty"`
		Positions   []positionView `json:"positions"`
	}

	var out []accountView
	for _, acct := range s.Registry.All() {
		degraded, reason := acct.Degraded()
		view := accountView{
			ID:       acct.ID,
			Exchange: acct.Exchange,
			Settle:   acct.Settle,
			Degraded: degraded,
		}
		if degraded && reason != nil {
			view.Reason = reason.Error()
		}
		if ts := acct.Positions.LastRefresh(); !ts.IsZero() {
			view.LastRefresh = &ts
		}
		for _, p := range acct.Positions.Snapshot() {
			view.Positions = append(view.Positions, positionView{
				Symbol:        p.Symbol,
				Side:          string(p.Side),
				Contracts:     p.Contracts,
				UnrealizedPnl: p.UnrealizedPnl,
			})
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out, "active": s.Active()})
}

// getMetrics returns process counters.
func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.Stats())
}

// getOrders returns the recent order journal.
func (s *Server) getOrders(c *gin.Context) {
	orders, err := s.DB.RecentOrders(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getAlerts returns the recent alert journal.
func (s *Server) getAlerts(c *gin.Context) {
	alerts, err := s.DB.RecentAlerts(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// reinitAccount re-runs initialization for a degraded account.
func (s *Server) reinitAccount(c *gin.Context) {
	id := c.Param("id")
	if err := s.Registry.Reinit(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": id, "degraded": false})
}
