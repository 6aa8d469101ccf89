package sessionclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestUnbanGateOpenByDefault(t *testing.T) {
	gate := NewUnbanGate(func(context.Context, string) error {
		t.Fatal("verify called on an open gate")
		return nil
	})

	if gate.Locked() {
		t.Fatal("new gate is locked")
	}
	if err := gate.SubmitCode(context.Background(), "1234"); err != nil {
		t.Fatalf("SubmitCode on open gate = %v, want nil", err)
	}
}

func TestUnbanGateTriggerIdempotent(t *testing.T) {
	gate := NewUnbanGate(func(context.Context, string) error { return nil })

	gate.Trigger()
	gate.Trigger()
	gate.Trigger()

	if !gate.Locked() {
		t.Fatal("gate not locked after trigger")
	}
}

func TestUnbanGateEmptyCode(t *testing.T) {
	gate := NewUnbanGate(func(context.Context, string) error {
		t.Fatal("verify called with empty code")
		return nil
	})
	gate.Trigger()

	for _, code := range []string{"", "   ", "\t"} {
		if err := gate.SubmitCode(context.Background(), code); !errors.Is(err, ErrEmptyUnbanCode) {
			t.Fatalf("SubmitCode(%q) = %v, want ErrEmptyUnbanCode", code, err)
		}
	}
	if !gate.Locked() {
		t.Fatal("gate opened by an empty code")
	}
}

func TestUnbanGateRejectionKeepsLockAndError(t *testing.T) {
	gate := NewUnbanGate(func(_ context.Context, code string) error {
		if code != "7777" {
			return ErrInvalidUnbanCode
		}
		return nil
	})
	gate.Trigger()

	if err := gate.SubmitCode(context.Background(), "1111"); !errors.Is(err, ErrInvalidUnbanCode) {
		t.Fatalf("SubmitCode = %v, want ErrInvalidUnbanCode", err)
	}
	if !gate.Locked() {
		t.Fatal("gate opened by a rejected code")
	}
	if !errors.Is(gate.AttemptError(), ErrInvalidUnbanCode) {
		t.Fatalf("AttemptError = %v, want ErrInvalidUnbanCode", gate.AttemptError())
	}

	// Retry is unlimited; a correct code opens the gate and clears the
	// attempt error.
	if err := gate.SubmitCode(context.Background(), "7777"); err != nil {
		t.Fatalf("SubmitCode retry: %v", err)
	}
	if gate.Locked() {
		t.Fatal("gate still locked after correct code")
	}
	if gate.AttemptError() != nil {
		t.Fatalf("AttemptError = %v after success, want nil", gate.AttemptError())
	}
}

func TestUnbanGateSingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var verifyCalls atomic.Int32

	gate := NewUnbanGate(func(context.Context, string) error {
		verifyCalls.Add(1)
		close(entered)
		<-release
		return nil
	})
	gate.Trigger()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gate.SubmitCode(context.Background(), "1234"); err != nil {
			t.Errorf("first SubmitCode: %v", err)
		}
	}()

	<-entered
	if err := gate.SubmitCode(context.Background(), "1234"); !errors.Is(err, ErrVerifyInFlight) {
		t.Fatalf("concurrent SubmitCode = %v, want ErrVerifyInFlight", err)
	}

	close(release)
	wg.Wait()

	if n := verifyCalls.Load(); n != 1 {
		t.Fatalf("verify calls = %d, want exactly 1", n)
	}
	if gate.Locked() {
		t.Fatal("gate still locked after successful verification")
	}
}
