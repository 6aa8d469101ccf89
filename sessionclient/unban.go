package sessionclient

import (
	"context"
	"strings"
	"sync"
)

// VerifyFunc checks an unban code against the backend.
type VerifyFunc func(ctx context.Context, code string) error

// UnbanGate blocks answer mutation once the warning limit is reached and
// reopens only via a verified proctor-issued code. The gate does no
// client-side format validation; accept/reject is entirely the
// verifier's decision.
type UnbanGate struct {
	verify VerifyFunc

	mu         sync.Mutex
	locked     bool
	inFlight   bool
	attemptErr error
}

// NewUnbanGate creates an open gate.
func NewUnbanGate(verify VerifyFunc) *UnbanGate {
	return &UnbanGate{verify: verify}
}

// Trigger closes the gate. Idempotent.
func (g *UnbanGate) Trigger() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked = true
}

// Locked reports whether the gate is closed.
func (g *UnbanGate) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

// AttemptError returns the last rejection, nil if none.
func (g *UnbanGate) AttemptError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attemptErr
}

// SubmitCode verifies a code. On success the gate opens and the attempt
// error clears. On rejection the error is kept for display and the
// student may retry without limit. Only one verification runs at a time;
// a call while one is in flight returns ErrVerifyInFlight without a
// second network round trip.
func (g *UnbanGate) SubmitCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyUnbanCode
	}

	g.mu.Lock()
	if !g.locked {
		g.mu.Unlock()
		return nil
	}
	if g.inFlight {
		g.mu.Unlock()
		return ErrVerifyInFlight
	}
	g.inFlight = true
	g.mu.Unlock()

	err := g.verify(ctx, code)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false

	if err != nil {
		g.attemptErr = err
		return err
	}

	g.locked = false
	g.attemptErr = nil
	return nil
}

// reset reopens the gate and clears any attempt error. Used when the
// controller tears down or installs a session.
func (g *UnbanGate) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked = false
	g.inFlight = false
	g.attemptErr = nil
}
