package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sinovhub/sinov-backend/internal/middleware"
	"github.com/sinovhub/sinov-backend/internal/model"
	"github.com/sinovhub/sinov-backend/internal/response"
	"github.com/sinovhub/sinov-backend/internal/service"
	"github.com/sinovhub/sinov-backend/internal/validator"
)

// SessionHandler handles the student-facing test session endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// failSessionErr maps session service errors onto the response envelope.
func failSessionErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTestNotAvailable):
		response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
	case errors.Is(err, service.ErrTestAlreadyTaken):
		response.Fail(c, http.StatusConflict, response.ErrTestAlreadyTaken)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrSessionCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
	case errors.Is(err, service.ErrSessionLocked):
		response.Fail(c, http.StatusLocked, response.ErrSessionLocked)
	case errors.Is(err, service.ErrNoUnbanCode):
		response.Fail(c, http.StatusBadRequest, response.ErrNoUnbanCode)
	case errors.Is(err, service.ErrInvalidUnbanCode):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidUnbanCode)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// StartSession godoc
// POST /api/v1/student/sessions
// Starts (or idempotently resumes) a session for a test.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), claims.UserID, claims.GradeLevel, req.TestID)
	if err != nil {
		failSessionErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id":     session.ID,
		"test_id":        session.TestID,
		"started_at":     session.StartedAt,
		"expires_at":     session.ExpiresAt,
		"time_remaining": session.RemainingSeconds(session.StartedAt),
	})
}

// GetActiveSession godoc
// GET /api/v1/student/tests/:test_id/session
// Returns the resumable session for a test, 404 when none exists.
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.ActiveForTest(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failSessionErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetSession godoc
// GET /api/v1/student/sessions/:session_id
// Returns the resume state: saved answers, remaining time, warning state.
// 410 Gone when the session's time has run out.
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.Get(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failSessionErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// UpdateAnswers godoc
// PUT /api/v1/student/sessions/:session_id/answers
// Merges a partial answers map into the session. 423 when locked.
func (h *SessionHandler) UpdateAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.UpdateAnswers(c.Request.Context(), sessionID, claims.UserID, req.Answers); err != nil {
		failSessionErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// SubmitSession godoc
// POST /api/v1/student/sessions/:session_id/submit
// Finalizes and grades the session.
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.Reason == "" {
		req.Reason = model.SubmitReasonStudent
	}

	result, err := h.sessionService.Submit(c.Request.Context(), sessionID, claims.UserID, req.Reason)
	if err != nil {
		failSessionErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// RecordWarning godoc
// POST /api/v1/student/sessions/:session_id/warnings
// Records a proctoring signal; the response tells the client whether the
// session is now locked.
func (h *SessionHandler) RecordWarning(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.WarningRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	count, locked, err := h.sessionService.RecordWarning(c.Request.Context(), sessionID, claims.UserID, &req)
	if err != nil {
		failSessionErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"warning_count": count,
		"locked":        locked,
	})
}

// Unban godoc
// POST /api/v1/student/sessions/:session_id/unban
// Verifies a proctor-issued code and unlocks the session.
func (h *SessionHandler) Unban(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UnbanRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.VerifyUnbanCode(c.Request.Context(), sessionID, claims.UserID, req.Code); err != nil {
		failSessionErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unlocked": true})
}

// ListAttempts godoc
// GET /api/v1/student/attempts?test_id=...
// Lists the student's completed attempts, optionally filtered by test.
func (h *SessionHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var testID *uuid.UUID
	if raw := c.Query("test_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		testID = &id
	}

	attempts, err := h.sessionService.ListAttempts(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
