package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/quizroom/quizroom-backend/internal/model"
	ws "github.com/quizroom/quizroom-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
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

// WSHandler streams attempt timers.
type WSHandler struct {
	attemptService AttemptService
	tick           time.Duration
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		tick:           time.Second,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptTimer godoc
// WS /ws/v1/attempts/:id/timer?token=...
// Pushes the remaining time every second. When the deadline passes the
// attempt is closed server-side, a final "finished" event is sent and the
// socket is closed.
func (h *WSHandler) AttemptTimer(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	attemptID, ok := paramAttemptID(c)
	if !ok {
		return
	}

	// Ownership and existence are checked before the upgrade so failures
	// still get a JSON body.
	first, err := h.attemptService.Timer(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int64("student_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Debug().Msg("Timer stream connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actions := make(chan ws.Action, 4)
	go h.readLoop(ctx, cancel, conn, actions, wsLog)

	if done := h.push(conn, first); done {
		return
	}

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Timer stream closed")
			return
		case <-ticker.C:
		case action := <-actions:
			if action == ws.ActionPing {
				if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
					return
				}
				continue
			}
		}

		snap, err := h.attemptService.Timer(ctx, attemptID, claims.UserID)
		if err != nil {
			if ctx.Err() == nil {
				wsLog.Error().Err(err).Msg("Timer snapshot failed")
				_ = ws.WriteError(conn, "timer unavailable")
			}
			return
		}
		if done := h.push(conn, snap); done {
			return
		}
	}
}

// push writes one snapshot and reports whether the stream should end.
func (h *WSHandler) push(conn *websocket.Conn, snap *model.TimerSnapshot) bool {
	event := ws.EventTick
	if snap.Finished {
		event = ws.EventFinished
	}
	if err := ws.WriteTyped(conn, ws.TimerResponse{Event: event, TimerSnapshot: *snap}); err != nil {
		return true
	}
	if snap.Finished {
		ws.CloseNormal(conn, "attempt finished")
		return true
	}
	return false
}

// readLoop handles client actions. It cancels ctx when the client goes away.
// Only the main loop writes to conn, so actions are handed over on a channel.
func (h *WSHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, actions chan<- ws.Action, log zerolog.Logger) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		switch msg.Action {
		case ws.ActionSync, ws.ActionPing:
			select {
			case actions <- msg.Action:
			case <-ctx.Done():
				return
			default:
			}
		default:
			log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		}
	}
}
