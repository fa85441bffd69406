package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"hookrelay/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsPingInterval = 30 * time.Second

// websocket streams alert lifecycle events to a connected client:
// accepted alerts, submitted orders, and terminal execution results.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	alerts, unsubAlerts := s.Bus.Subscribe(events.EventAlertReceived, 64)
	defer unsubAlerts()
	results, unsubResults := s.Bus.Subscribe(events.EventExecutionDone, 64)
	defer unsubResults()

	// Drain client frames so close handshakes are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	remote := c.ClientIP()
	log.Debug().Str("remote", remote).Msg("ws client connected")

	for {
		var payload any
		select {
		case <-closed:
			log.Debug().Str("remote", remote).Msg("ws client disconnected")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
			continue
		case payload = <-alerts:
		case payload = <-results:
		}
		if err := conn.WriteJSON(payload); err != nil {
			log.Debug().Str("remote", remote).Err(err).Msg("ws write failed")
			return
		}
	}
}
