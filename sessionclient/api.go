package sessionclient

import "context"

// TestInfo is the metadata needed to run an attempt.
type TestInfo struct {
	TestID           string
	Title            string
	TimeLimitMinutes int
	TotalQuestions   int
	TargetGrades     []string
}

// Question is one displayable question. The correct answer never reaches
// this side.
type Question struct {
	ID       string
	Text     string
	Type     string
	Options  []string
	ImageURL string
	OrderNum int
}

// SessionSnapshot is the server's view of an attempt, used when starting
// and when resuming.
type SessionSnapshot struct {
	SessionID        string
	TestID           string
	Answers          map[string]string
	RemainingSeconds int
	WarningCount     int
	Locked           bool
}

// SubmitOutcome is the terminal result of an attempt.
type SubmitOutcome struct {
	Score   float64
	Expired bool
}

// Attempt is a completed attempt record.
type Attempt struct {
	TestID string
	Score  float64
}

// Collaborator is the backend the session controller talks to. All calls
// block until the server responds; pass a context to bound them.
type Collaborator interface {
	// StartSession creates a session for a test. Returns
	// ErrTestAlreadyTaken when the student already completed the test.
	// The server treats a start racing an existing active session as a
	// resume, so the returned snapshot may carry prior answers.
	StartSession(ctx context.Context, testID string) (*SessionSnapshot, error)

	// ActiveSession returns the resumable session for a test, or
	// ErrNoActiveSession. Read-only.
	ActiveSession(ctx context.Context, testID string) (*SessionSnapshot, error)

	// SessionState returns the full resume state of a session, including
	// answers saved from any device. Returns ErrSessionExpired when the
	// session's time ran out while the client was away.
	SessionState(ctx context.Context, sessionID string) (*SessionSnapshot, error)

	// SaveAnswers merges a partial answers map into the session. Safe to
	// call repeatedly. Returns ErrSessionLocked while the unban gate is
	// closed server-side.
	SaveAnswers(ctx context.Context, sessionID string, answers map[string]string) error

	// SubmitSession finalizes and grades the session. Repeat calls after
	// success are rejected by the server.
	SubmitSession(ctx context.Context, sessionID, reason string) (*SubmitOutcome, error)

	// VerifyUnbanCode checks a proctor-issued code. Returns
	// ErrInvalidUnbanCode on rejection.
	VerifyUnbanCode(ctx context.Context, sessionID, code string) error

	// TestInfo returns test metadata.
	TestInfo(ctx context.Context, testID string) (*TestInfo, error)

	// Questions returns the ordered question list for a test.
	Questions(ctx context.Context, testID string) ([]Question, error)

	// Attempts lists the student's completed attempts, optionally for
	// one test (empty testID means all).
	Attempts(ctx context.Context, testID string) ([]Attempt, error)
}

// Submit reasons passed to SubmitSession.
const (
	ReasonStudent = "student"
	ReasonUrgent  = "urgent"
	ReasonTimeout = "timeout"
)
