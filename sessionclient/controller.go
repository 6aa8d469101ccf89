package sessionclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the client-side state of an attempt.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusCompleted  Status = "completed"
)

// DefaultWarningLimit is the number of proctoring warnings after which
// the unban gate closes.
const DefaultWarningLimit = 3

// Controller owns the state machine for one student's attempt at one
// test: starting, resuming, answer autosave with rollback, the countdown
// and submission. A Controller is safe for use from multiple goroutines;
// internally every transition holds the mutex, and async results are
// discarded when they arrive for a session that is no longer current.
type Controller struct {
	api Collaborator

	mu sync.Mutex

	status    Status
	sessionID string
	testID    string

	test      *TestInfo
	questions []Question

	answers map[string]string
	// answerSeq tracks the latest write per question so a slow failing
	// save cannot roll back a newer value (last-write-wins per key).
	answerSeq map[string]uint64
	seq       uint64

	// epoch increments on every Clear/Exit so in-flight responses from a
	// torn-down session are never applied.
	epoch uint64

	currentQuestionIndex int

	remainingSeconds int
	timeoutFired     bool

	warningCount int
	warningLimit int
	gate         *UnbanGate

	score     float64
	submitErr error
}

// Option configures a Controller.
type Option func(*Controller)

// WithWarningLimit overrides the lockout threshold.
func WithWarningLimit(n int) Option {
	return func(ctrl *Controller) { ctrl.warningLimit = n }
}

// NewController creates a Controller in the not_started state.
func NewController(api Collaborator, opts ...Option) *Controller {
	c := &Controller{
		api:          api,
		status:       StatusNotStarted,
		answers:      map[string]string{},
		answerSeq:    map[string]uint64{},
		warningLimit: DefaultWarningLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gate = NewUnbanGate(func(ctx context.Context, code string) error {
		c.mu.Lock()
		sessionID := c.sessionID
		c.mu.Unlock()
		return c.api.VerifyUnbanCode(ctx, sessionID, code)
	})
	return c
}

// Start begins an attempt at a test. The flow always checks before it
// starts: a completed attempt returns ErrTestAlreadyTaken, an existing
// active session is resumed instead of creating a duplicate, and only
// then is a new session created.
func (c *Controller) Start(ctx context.Context, testID string) error {
	c.mu.Lock()
	if c.status != StatusNotStarted {
		c.mu.Unlock()
		return fmt.Errorf("start from %s: %w", c.status, ErrNotActive)
	}
	epoch := c.epoch
	c.mu.Unlock()

	attempts, err := c.api.Attempts(ctx, testID)
	if err != nil {
		return fmt.Errorf("check attempts: %w", err)
	}
	if len(attempts) > 0 {
		return ErrTestAlreadyTaken
	}

	snapshot, err := c.api.ActiveSession(ctx, testID)
	if err == nil {
		return c.resume(ctx, epoch, testID, snapshot)
	}
	if err != ErrNoActiveSession {
		return fmt.Errorf("check active session: %w", err)
	}

	snapshot, err = c.api.StartSession(ctx, testID)
	if err != nil {
		return err
	}
	return c.resume(ctx, epoch, testID, snapshot)
}

// Continue resumes a previously-fetched active session without creating
// one server-side. Fails, leaving the controller reset, if the test or
// its questions cannot be loaded.
func (c *Controller) Continue(ctx context.Context, testID string, snapshot *SessionSnapshot) error {
	c.mu.Lock()
	if c.status != StatusNotStarted {
		c.mu.Unlock()
		return fmt.Errorf("continue from %s: %w", c.status, ErrNotActive)
	}
	epoch := c.epoch
	c.mu.Unlock()

	return c.resume(ctx, epoch, testID, snapshot)
}

// resume loads the test and questions, then installs the snapshot as the
// live session. The question set must be fully loaded before answers are
// observable, so the UI never renders against an empty question list.
func (c *Controller) resume(ctx context.Context, epoch uint64, testID string, snapshot *SessionSnapshot) error {
	test, err := c.api.TestInfo(ctx, testID)
	if err != nil {
		c.Clear()
		return fmt.Errorf("load test: %w", err)
	}
	questions, err := c.api.Questions(ctx, testID)
	if err != nil {
		c.Clear()
		return fmt.Errorf("load questions: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		// The session was cleared while we were loading. Drop the result.
		return ErrNotActive
	}

	c.status = StatusActive
	c.sessionID = snapshot.SessionID
	c.testID = testID
	c.test = test
	c.questions = questions
	c.currentQuestionIndex = 0
	c.remainingSeconds = snapshot.RemainingSeconds
	c.timeoutFired = false
	c.warningCount = snapshot.WarningCount
	c.score = 0
	c.submitErr = nil

	c.answers = make(map[string]string, len(snapshot.Answers))
	for k, v := range snapshot.Answers {
		c.answers[k] = v
	}
	c.answerSeq = map[string]uint64{}

	if snapshot.Locked {
		c.gate.Trigger()
	} else {
		c.gate.reset()
	}
	return nil
}

// UpdateAnswer records an answer optimistically and persists it. On
// persistence failure the local value for that question rolls back to
// its prior value and ErrAnswerNotSaved is returned; there is no
// automatic retry, the student re-edits. Rejected with ErrSessionLocked
// while the unban gate is closed.
func (c *Controller) UpdateAnswer(ctx context.Context, questionID, value string) error {
	c.mu.Lock()
	if c.status != StatusActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.gate.Locked() {
		c.mu.Unlock()
		return ErrSessionLocked
	}

	prev, hadPrev := c.answers[questionID]
	c.answers[questionID] = value
	c.seq++
	mySeq := c.seq
	c.answerSeq[questionID] = mySeq
	sessionID := c.sessionID
	epoch := c.epoch
	c.mu.Unlock()

	err := c.api.SaveAnswers(ctx, sessionID, map[string]string{questionID: value})

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer edit to this question, or a session teardown, supersedes
	// whatever this call has to say.
	if c.epoch != epoch || c.answerSeq[questionID] != mySeq {
		return nil
	}

	if err != nil {
		if hadPrev {
			c.answers[questionID] = prev
		} else {
			delete(c.answers, questionID)
		}
		if err == ErrSessionLocked || err == ErrSessionExpired {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAnswerNotSaved, err)
	}
	return nil
}

// Tick advances the countdown by one second. When time runs out it
// triggers exactly one forced submission; further ticks while that
// submission is in flight (or after it) are no-ops.
func (c *Controller) Tick(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusActive {
		c.mu.Unlock()
		return nil
	}
	if c.remainingSeconds > 0 {
		c.remainingSeconds--
	}
	if c.remainingSeconds > 0 || c.timeoutFired {
		c.mu.Unlock()
		return nil
	}
	c.timeoutFired = true
	c.mu.Unlock()

	return c.Submit(ctx, ReasonTimeout)
}

// RunCountdown ticks once per second until the session leaves the active
// state or ctx is cancelled. Call in a goroutine.
func (c *Controller) RunCountdown(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Tick(ctx)
			if c.Status() != StatusActive {
				return
			}
		}
	}
}

// SyncRemaining reconciles the local countdown with the authoritative
// server value. Remaining time never increases mid-session, so the
// smaller of the two wins.
func (c *Controller) SyncRemaining(serverSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusActive && serverSeconds < c.remainingSeconds {
		c.remainingSeconds = serverSeconds
	}
}

// Submit finalizes the attempt. User-initiated, urgent and timeout
// submissions all pass through here; only the reason differs. While one
// submission is in flight a second call returns ErrSubmitInFlight and no
// duplicate collaborator call is made. On failure the session returns to
// active with answers intact so the student can retry.
func (c *Controller) Submit(ctx context.Context, reason string) error {
	c.mu.Lock()
	switch c.status {
	case StatusSubmitting:
		c.mu.Unlock()
		return ErrSubmitInFlight
	case StatusCompleted:
		c.mu.Unlock()
		return nil
	case StatusNotStarted:
		c.mu.Unlock()
		return ErrNotActive
	}
	c.status = StatusSubmitting
	sessionID := c.sessionID
	epoch := c.epoch
	c.mu.Unlock()

	outcome, err := c.api.SubmitSession(ctx, sessionID, reason)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return nil
	}

	if err != nil {
		// Retryable: answers stay, the student submits again.
		c.status = StatusActive
		c.submitErr = err
		return fmt.Errorf("submit: %w", err)
	}

	c.status = StatusCompleted
	c.score = outcome.Score
	c.submitErr = nil
	return nil
}

// RecordWarning increments the warning counter and closes the unban gate
// at the limit. Returns the new count and whether the gate is closed.
func (c *Controller) RecordWarning() (count int, locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusActive {
		return c.warningCount, c.gate.Locked()
	}
	if c.warningCount < c.warningLimit {
		c.warningCount++
	}
	if c.warningCount >= c.warningLimit {
		c.gate.Trigger()
	}
	return c.warningCount, c.gate.Locked()
}

// SubmitUnbanCode verifies a proctor-issued code and, on success,
// reopens the gate so UpdateAnswer works again immediately.
func (c *Controller) SubmitUnbanCode(ctx context.Context, code string) error {
	err := c.gate.SubmitCode(ctx, code)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.warningCount = 0
	c.mu.Unlock()
	return nil
}

// Exit abandons the attempt locally. The server-side timer keeps
// running and answers already persisted stay saved; only the local state
// is discarded. This is deliberately not a submit.
func (c *Controller) Exit() {
	c.Clear()
}

// Clear resets the controller to not_started. In-flight responses from
// the old session are discarded when they land.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.status = StatusNotStarted
	c.sessionID = ""
	c.testID = ""
	c.test = nil
	c.questions = nil
	c.answers = map[string]string{}
	c.answerSeq = map[string]uint64{}
	c.currentQuestionIndex = 0
	c.remainingSeconds = 0
	c.timeoutFired = false
	c.warningCount = 0
	c.score = 0
	c.submitErr = nil
	c.gate.reset()
}

// ─── Accessors ──────────────────────────────────────────────────────

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SessionID returns the server-issued session identifier.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Answers returns a copy of the current answers map.
func (c *Controller) Answers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		out[k] = v
	}
	return out
}

// Answer returns one answer and whether it is set.
func (c *Controller) Answer(questionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.answers[questionID]
	return v, ok
}

// Questions returns the loaded question list in display order.
func (c *Controller) Questions() []Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.questions
}

// Test returns the loaded test metadata, nil before start.
func (c *Controller) Test() *TestInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.test
}

// RemainingSeconds returns the locally-tracked remaining time.
func (c *Controller) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingSeconds
}

// CurrentQuestionIndex returns the question the UI is on.
func (c *Controller) CurrentQuestionIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentQuestionIndex
}

// SetCurrentQuestionIndex moves the UI cursor, clamped to the question list.
func (c *Controller) SetCurrentQuestionIndex(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.questions) {
		return
	}
	c.currentQuestionIndex = i
}

// WarningCount returns the proctoring warning counter.
func (c *Controller) WarningCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warningCount
}

// Locked reports whether the unban gate is closed.
func (c *Controller) Locked() bool {
	return c.gate.Locked()
}

// Gate exposes the unban gate for UIs that render its attempt error.
func (c *Controller) Gate() *UnbanGate {
	return c.gate
}

// Score returns the final score after completion.
func (c *Controller) Score() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score
}
