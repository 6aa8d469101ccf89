package sessionclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func envelopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func envelopeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func TestHTTPCollaboratorStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/student/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			TestID string `json:"test_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.TestID != "t1" {
			t.Errorf("test_id = %q, want t1", body.TestID)
		}
		envelopeData(w, http.StatusCreated, map[string]any{
			"session_id":     "sess-1",
			"test_id":        "t1",
			"answers":        map[string]string{},
			"time_remaining": 600,
		})
	}))
	defer srv.Close()

	api := NewHTTPCollaborator(srv.URL, "tok-123")
	snap, err := api.StartSession(context.Background(), "t1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if snap.SessionID != "sess-1" || snap.RemainingSeconds != 600 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Answers == nil {
		t.Fatal("answers map is nil")
	}
}

func TestHTTPCollaboratorErrorCodeMapping(t *testing.T) {
	tests := []struct {
		code   string
		status int
		want   error
	}{
		{"TEST_ALREADY_TAKEN", http.StatusConflict, ErrTestAlreadyTaken},
		{"SESSION_COMPLETED", http.StatusConflict, ErrTestAlreadyTaken},
		{"SESSION_NOT_FOUND", http.StatusNotFound, ErrNoActiveSession},
		{"SESSION_EXPIRED", http.StatusGone, ErrSessionExpired},
		{"SESSION_LOCKED", http.StatusLocked, ErrSessionLocked},
		{"INVALID_UNBAN_CODE", http.StatusBadRequest, ErrInvalidUnbanCode},
		{"NO_UNBAN_CODE", http.StatusBadRequest, ErrInvalidUnbanCode},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				envelopeError(w, tc.status, tc.code, "rejected")
			}))
			defer srv.Close()

			api := NewHTTPCollaborator(srv.URL, "tok")
			_, err := api.StartSession(context.Background(), "t1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestHTTPCollaboratorUnknownErrorCodePreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		envelopeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "boom")
	}))
	defer srv.Close()

	api := NewHTTPCollaborator(srv.URL, "tok")
	err := api.SaveAnswers(context.Background(), "sess-1", map[string]string{"q1": "A"})
	if err == nil {
		t.Fatal("SaveAnswers = nil, want error")
	}
	if errors.Is(err, ErrSessionLocked) || errors.Is(err, ErrSessionExpired) {
		t.Fatalf("unknown code mapped to a sentinel: %v", err)
	}
}

func TestHTTPCollaboratorActiveSessionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/student/tests/t9/session" {
			t.Errorf("path = %s", r.URL.Path)
		}
		envelopeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no active session")
	}))
	defer srv.Close()

	api := NewHTTPCollaborator(srv.URL, "tok")
	_, err := api.ActiveSession(context.Background(), "t9")
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("error = %v, want ErrNoActiveSession", err)
	}
}

func TestHTTPCollaboratorSaveAnswersBody(t *testing.T) {
	var got map[string]map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/student/sessions/sess-1/answers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		envelopeData(w, http.StatusOK, map[string]string{"status": "saved"})
	}))
	defer srv.Close()

	api := NewHTTPCollaborator(srv.URL, "tok")
	if err := api.SaveAnswers(context.Background(), "sess-1", map[string]string{"q1": "B"}); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	if got["answers"]["q1"] != "B" {
		t.Fatalf("request body answers = %v", got["answers"])
	}
}

func TestHTTPCollaboratorSubmitSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/student/sessions/sess-1/submit" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			Reason string `json:"reason"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Reason != ReasonTimeout {
			t.Errorf("reason = %q, want %q", body.Reason, ReasonTimeout)
		}
		envelopeData(w, http.StatusOK, map[string]any{"score": 87.5, "expired": true})
	}))
	defer srv.Close()

	api := NewHTTPCollaborator(srv.URL, "tok")
	outcome, err := api.SubmitSession(context.Background(), "sess-1", ReasonTimeout)
	if err != nil {
		t.Fatalf("SubmitSession: %v", err)
	}
	if outcome.Score != 87.5 || !outcome.Expired {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestHTTPCollaboratorQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/student/tests/t1/questions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		envelopeData(w, http.StatusOK, map[string]any{
			"questions": []map[string]any{
				{
					"id":            "q1",
					"question_text": "2+2?",
					"question_type": "multiple_choice",
					"options":       []string{"3", "4"},
					"order_num":     1,
				},
				{
					"id":            "q2",
					"question_text": "Capital of Uzbekistan?",
					"question_type": "short_answer",
					"order_num":     2,
				},
			},
		})
	}))
	defer srv.Close()

	api := NewHTTPCollaborator(srv.URL, "tok")
	questions, err := api.Questions(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("len = %d, want 2", len(questions))
	}
	if questions[0].Text != "2+2?" || len(questions[0].Options) != 2 {
		t.Fatalf("questions[0] = %+v", questions[0])
	}
	if questions[1].Type != "short_answer" {
		t.Fatalf("questions[1].Type = %q", questions[1].Type)
	}
}

func TestHTTPCollaboratorAttemptsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("test_id"); got != "t1" {
			t.Errorf("test_id query = %q, want t1", got)
		}
		envelopeData(w, http.StatusOK, map[string]any{
			"attempts": []map[string]any{{"test_id": "t1", "score": 92.0}},
		})
	}))
	defer srv.Close()

	api := NewHTTPCollaborator(srv.URL, "tok")
	attempts, err := api.Attempts(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Score != 92 {
		t.Fatalf("attempts = %+v", attempts)
	}
}
