package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/model"
	ws "github.com/stemsi/examvault/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams analysis results to admin dashboards over
// WebSocket. Results are fanned out via Redis PubSub so every server
// instance sees every analysis.
type MonitorHandler struct {
	rdb      *redis.Client
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		log:      log.With().Str("component", "monitor_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream handles GET /admin/monitor/ws. Every analyzed submission is pushed
// to the connected dashboard as it happens.
func (h *MonitorHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub := h.rdb.Subscribe(ctx, config.CacheKey.MonitorChannel())
	defer sub.Close()

	// Read pump: monitor clients never send data, but reading is the only
	// way to notice the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.log.Info().Msg("Monitor client connected")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Monitor client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var analyzed model.AnalyzedSubmission
			if err := json.Unmarshal([]byte(msg.Payload), &analyzed); err != nil {
				h.log.Warn().Err(err).Msg("Discarding malformed monitor payload")
				continue
			}
			if err := ws.WriteTyped(conn, ws.AnalyzedEvent{Event: ws.EventAnalyzed, Submission: &analyzed}); err != nil {
				return
			}
		}
	}
}
