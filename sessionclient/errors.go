// Package sessionclient implements the client side of a timed test
// attempt: the session state machine (start, resume, answer autosave,
// countdown, submission) and the unban gate that blocks answering after
// repeated proctoring warnings. It is transport-agnostic; the backend is
// reached through the Collaborator interface, with HTTPCollaborator as
// the standard implementation.
package sessionclient

import "errors"

// Errors surfaced by the controller and the collaborator implementations.
var (
	// ErrTestAlreadyTaken means the student completed this test before.
	// Callers should route to the results view, not show a failure.
	ErrTestAlreadyTaken = errors.New("test already taken")

	// ErrNoActiveSession is returned by ActiveSession when nothing is resumable.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionExpired means the server closed the session because its
	// time ran out.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionLocked means answering is blocked until an unban code
	// is verified.
	ErrSessionLocked = errors.New("session locked")

	// ErrAnswerNotSaved means an answer failed to persist and the local
	// value was rolled back. The student must re-enter the answer.
	ErrAnswerNotSaved = errors.New("answer not saved, check connection")

	// ErrNotActive means the operation requires an active session.
	ErrNotActive = errors.New("session not active")

	// ErrSubmitInFlight means a submission is already being processed.
	ErrSubmitInFlight = errors.New("submit already in flight")

	// ErrInvalidUnbanCode means the entered code was rejected.
	ErrInvalidUnbanCode = errors.New("invalid unban code")

	// ErrVerifyInFlight means an unban verification is already running.
	ErrVerifyInFlight = errors.New("verification already in flight")

	// ErrEmptyUnbanCode means the code was empty after trimming.
	ErrEmptyUnbanCode = errors.New("unban code is empty")
)
