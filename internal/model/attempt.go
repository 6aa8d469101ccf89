package model

import (
	"time"

	"github.com/google/uuid"
)

// TestAttempt is the immutable record of a completed test.
// Created exactly once per (student, test) when a session is finalized.
type TestAttempt struct {
	ID               uuid.UUID         `json:"id"`
	TestID           uuid.UUID         `json:"test_id"`
	StudentID        int               `json:"student_id"`
	Answers          map[string]string `json:"answers"`
	Score            float64           `json:"score"`
	TimeTakenMinutes int               `json:"time_taken"`
	CreatedAt        time.Time         `json:"created_at"`
}
