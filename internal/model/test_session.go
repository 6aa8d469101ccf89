package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates persisted test session states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusExpired   SessionStatus = "EXPIRED"
)

// SubmitReason tags what triggered a submission.
type SubmitReason string

const (
	SubmitReasonStudent SubmitReason = "student"
	SubmitReasonUrgent  SubmitReason = "urgent"
	SubmitReasonTimeout SubmitReason = "timeout"
)

// TestSession represents a student's timed attempt at one test.
// At most one ACTIVE session exists per (student, test) pair; the
// database enforces this with a partial unique index.
type TestSession struct {
	ID           uuid.UUID         `json:"session_id"`
	TestID       uuid.UUID         `json:"test_id"`
	StudentID    int               `json:"student_id"`
	Answers      map[string]string `json:"answers"`
	StartedAt    time.Time         `json:"started_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	Status       SessionStatus     `json:"status"`
	WarningCount int               `json:"warning_count"`
	Locked       bool              `json:"locked"`
	FinalScore   *float64          `json:"final_score,omitempty"`
}

// RemainingSeconds returns whole seconds left until the session deadline,
// clamped at zero.
func (s *TestSession) RemainingSeconds(now time.Time) int {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// SessionState is the resume payload returned to the client: everything
// needed to rebuild an in-progress attempt after a reload or crash.
type SessionState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	TestID           uuid.UUID         `json:"test_id"`
	Answers          map[string]string `json:"answers"`
	RemainingSeconds int               `json:"time_remaining"`
	WarningCount     int               `json:"warning_count"`
	Locked           bool              `json:"locked"`
}

// SubmitResult is returned when a session is finalized.
type SubmitResult struct {
	Success   bool      `json:"success"`
	Score     float64   `json:"score"`
	AttemptID uuid.UUID `json:"attempt_id"`
	Expired   bool      `json:"expired"`
	Message   string    `json:"message"`
}

// StartSessionRequest is the payload for starting a test session.
type StartSessionRequest struct {
	TestID uuid.UUID `json:"test_id" binding:"required"`
}

// UpdateAnswersRequest carries a partial answers map to merge into the session.
type UpdateAnswersRequest struct {
	Answers map[string]string `json:"answers" binding:"required,min=1"`
}

// SubmitSessionRequest finalizes a session.
type SubmitSessionRequest struct {
	Reason SubmitReason `json:"reason" binding:"omitempty,oneof=student urgent timeout"`
}

// WarningRequest is the proctoring signal payload.
type WarningRequest struct {
	WarningType string `json:"warning_type" binding:"required,max=64"`
	Message     string `json:"warning_message" binding:"max=512"`
}

// UnbanRequest carries the proctor-issued code to unlock a session.
type UnbanRequest struct {
	Code string `json:"code" binding:"required,min=1,max=16"`
}
