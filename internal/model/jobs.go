package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerPersistJob is queued on every autosave and drained by the answer
// worker, which merges the payload into the session's jsonb column.
type AnswerPersistJob struct {
	SessionID uuid.UUID         `json:"session_id"`
	Answers   map[string]string `json:"answers"`
}

// WarningEvent is queued on every proctoring signal and bulk-inserted by
// the warning worker into the session_warnings audit table.
type WarningEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	StudentID   int       `json:"student_id"`
	WarningType string    `json:"warning_type"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}
