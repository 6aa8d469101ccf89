package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sinovhub/sinov-backend/internal/middleware"
	"github.com/sinovhub/sinov-backend/internal/model"
	"github.com/sinovhub/sinov-backend/internal/service"
	ws "github.com/sinovhub/sinov-backend/internal/websocket"
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

// WSHandler handles WebSocket session streaming: autosave, warnings and
// submit over one connection instead of separate HTTP calls.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream
// Upgrades to WebSocket for real-time autosave, proctoring signals and submit.
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

	studentID := claims.UserID

	// Validate ownership and liveness before upgrading.
	state, err := h.sessionService.Get(c.Request.Context(), sessionID, studentID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrSessionExpired):
			status = http.StatusGone
		case errors.Is(err, service.ErrSessionCompleted):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Duration(state.RemainingSeconds) * time.Second)

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, sessionID, studentID, &msg)
		case ws.ActionWarning:
			h.handleWarning(conn, wsLog, sessionID, studentID, &msg)
		case ws.ActionSubmit:
			if h.handleSubmit(conn, wsLog, sessionID, studentID, &msg) {
				return
			}
		case ws.ActionPing:
			remaining := int(time.Until(deadline).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, RemainingSeconds: remaining})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, studentID int, msg *ws.RequestPayload) {
	if msg.QID == "" {
		ws.WriteError(conn, "q_id is required")
		return
	}
	// QID must be a well-formed UUID to prevent key injection downstream.
	if _, err := uuid.Parse(msg.QID); err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return
	}

	err := h.sessionService.UpdateAnswers(context.Background(), sessionID, studentID, map[string]string{msg.QID: msg.Answer})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionLocked):
			ws.WriteError(conn, "session locked")
		case errors.Is(err, service.ErrSessionExpired):
			ws.WriteTyped(conn, ws.ErrorResponse{Event: ws.EventExpired, Error: "time is up"})
		default:
			wsLog.Error().Err(err).Msg("Autosave failed")
			ws.WriteError(conn, "save failed")
		}
		return
	}

	ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved", ClientID: msg.ClientID})
}

func (h *WSHandler) handleWarning(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, studentID int, msg *ws.RequestPayload) {
	if msg.WarningType == "" {
		ws.WriteError(conn, "warning_type is required")
		return
	}

	count, locked, err := h.sessionService.RecordWarning(context.Background(), sessionID, studentID, &model.WarningRequest{
		WarningType: msg.WarningType,
		Message:     msg.Message,
	})
	if err != nil {
		wsLog.Error().Err(err).Msg("Warning record failed")
		ws.WriteError(conn, "warning record failed")
		return
	}

	ws.WriteTyped(conn, ws.WarningResponse{Event: ws.EventWarning, Count: count, Locked: locked})
}

// handleSubmit finalizes the session. Returns true when the connection
// should close (the session reached a terminal state).
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, sessionID uuid.UUID, studentID int, msg *ws.RequestPayload) bool {
	reason := model.SubmitReasonStudent
	if msg.Reason != "" {
		reason = model.SubmitReason(msg.Reason)
	}

	result, err := h.sessionService.Submit(context.Background(), sessionID, studentID, reason)
	if err != nil {
		if errors.Is(err, service.ErrSessionCompleted) {
			ws.WriteError(conn, "session already finalized")
			return true
		}
		wsLog.Error().Err(err).Msg("Submit failed")
		ws.WriteError(conn, "submit failed")
		return false
	}

	wsLog.Info().Float64("score", result.Score).Str("reason", string(reason)).Msg("Session submitted over WebSocket")

	ws.WriteTyped(conn, ws.GradedResponse{
		Event:   ws.EventGraded,
		Status:  "completed",
		Score:   result.Score,
		Expired: result.Expired,
	})
	return true
}
