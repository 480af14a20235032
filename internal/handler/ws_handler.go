package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fastexam/exam-portal/internal/exam"
	"github.com/fastexam/exam-portal/internal/middleware"
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

// WSHandler streams countdown ticks to the exam center page.
type WSHandler struct {
	manager  *exam.Manager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(manager *exam.Manager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:  manager,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream
// Pushes one TickEvent per countdown second until the session leaves
// InProgress or the client disconnects.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sid := middleware.GetSessionID(c)
	sess, ok := h.manager.Get(sid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active exam session"})
		return
	}

	events, cancel := h.manager.Subscribe(sid)
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sid).Logger()
	wsLog.Info().Msg("Countdown stream connected")

	// The page never sends payloads; the read pump only detects disconnect.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Prime the client with the current state before the first tick.
	snap := sess.Snapshot()
	if err := conn.WriteJSON(exam.TickEvent{State: snap.State, TimeLeft: snap.TimeLeft}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			wsLog.Debug().Msg("Stream closed by client")
			return
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if ev.State != exam.StateInProgress.String() {
				wsLog.Debug().Msg("Session left InProgress, ending stream")
				return
			}
		}
	}
}
