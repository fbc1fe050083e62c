package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gradeloop/session-engine/internal/middleware"
	"github.com/gradeloop/session-engine/internal/model"
	"github.com/gradeloop/session-engine/internal/response"
	"github.com/gradeloop/session-engine/internal/session"
	ws "github.com/gradeloop/session-engine/internal/websocket"
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

// WSHandler handles the live session stream: one-second countdown ticks plus
// autosave and submit actions over a single WebSocket.
type WSHandler struct {
	manager  *session.Manager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(manager *session.Manager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:  manager,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream
// Upgrades to WebSocket. The server pushes a tick every second with the
// remaining time recomputed from the deadline; the client sends autosave,
// submit, and ping actions on the same connection.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sess, err := h.manager.Get(sessionID, claims.UserID)
	if err != nil {
		ws.WriteError(conn, "no running session with that ID")
		return
	}

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// gorilla/websocket permits one concurrent writer; the tick goroutine and
	// the read loop share the connection through this mutex.
	var writeMu sync.Mutex
	write := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		ws.WriteTyped(conn, v)
	}

	done := make(chan struct{})
	defer close(done)
	go h.streamTicks(sess, write, done)

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(write, sess, claims.UserID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(write, wsLog, sess, claims.UserID, &msg)
		case ws.ActionPing:
			write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// streamTicks pushes the countdown once per second and announces the expiry
// and auto-submit transitions as they happen.
func (h *WSHandler) streamTicks(sess *session.Session, write func(interface{}), done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	announcedExpired := false
	announcedSubmitted := false

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			status := sess.Status()
			write(ws.TickResponse{
				Event:            ws.EventTick,
				RemainingSeconds: sess.Remaining().Seconds(),
				Status:           string(status),
			})

			if !announcedExpired && status != model.SessionStatusActive && sess.Remaining() == 0 {
				announcedExpired = true
				write(ws.ErrorResponse{Event: ws.EventExpired, Error: "time is up; submitting your answers"})
			}

			if !announcedSubmitted && status == model.SessionStatusSubmitted {
				announcedSubmitted = true
				if result := sess.Result(); result != nil {
					write(ws.SubmittedResponse{
						Event:        ws.EventSubmitted,
						SubmissionID: result.SubmissionID.String(),
					})
				}
			}
		}
	}
}

// handleAutosave writes one answer through the manager, which also mirrors it
// to the persistence queue.
func (h *WSHandler) handleAutosave(write func(interface{}), sess *session.Session, studentID int, msg *ws.RequestPayload) {
	if msg.QuestionNumber <= 0 {
		write(ws.ErrorResponse{Event: ws.EventError, Error: "question_number is required"})
		return
	}

	err := h.manager.SaveAnswer(context.Background(), sess.ID, studentID, msg.QuestionNumber, msg.Text)
	if err != nil {
		_, code := sessionErrCode(err)
		write(ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)})
		return
	}

	write(ws.SavedResponse{
		Event:          ws.EventSaved,
		QuestionNumber: msg.QuestionNumber,
		AttemptedCount: sess.AttemptedCount(),
	})
}

// handleSubmit fires the manual trigger through the same gate the expiry
// trigger uses.
func (h *WSHandler) handleSubmit(write func(interface{}), wsLog zerolog.Logger, sess *session.Session, studentID int, msg *ws.RequestPayload) {
	result, err := h.manager.Submit(context.Background(), sess.ID, studentID, msg.ConfirmEmpty)
	if err != nil {
		_, code := sessionErrCode(err)
		write(ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)})
		return
	}

	wsLog.Info().Str("submission_id", result.SubmissionID.String()).Msg("Submitted over WebSocket")

	write(ws.SubmittedResponse{
		Event:        ws.EventSubmitted,
		SubmissionID: result.SubmissionID.String(),
	})
}
