package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPCollaborator talks to the backend's student REST API. It maps the
// API's error envelope onto the package's sentinel errors so the
// controller never sees transport details.
type HTTPCollaborator struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPCollaborator creates a collaborator for the given base URL
// (e.g. "https://api.example.uz") and student bearer token.
func NewHTTPCollaborator(baseURL, token string) *HTTPCollaborator {
	return &HTTPCollaborator{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapErrCode translates API error codes to sentinel errors.
func mapErrCode(code, message string) error {
	switch code {
	case "TEST_ALREADY_TAKEN":
		return ErrTestAlreadyTaken
	case "SESSION_NOT_FOUND":
		return ErrNoActiveSession
	case "SESSION_EXPIRED":
		return ErrSessionExpired
	case "SESSION_LOCKED":
		return ErrSessionLocked
	case "SESSION_COMPLETED":
		return ErrTestAlreadyTaken
	case "INVALID_UNBAN_CODE", "NO_UNBAN_CODE":
		return ErrInvalidUnbanCode
	default:
		return fmt.Errorf("api error %s: %s", code, message)
	}
}

func (h *HTTPCollaborator) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}

	if env.Error != nil {
		return mapErrCode(env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// sessionStateDTO mirrors the server's session state payload.
type sessionStateDTO struct {
	SessionID        string            `json:"session_id"`
	TestID           string            `json:"test_id"`
	Answers          map[string]string `json:"answers"`
	RemainingSeconds int               `json:"time_remaining"`
	WarningCount     int               `json:"warning_count"`
	Locked           bool              `json:"locked"`
}

func (d *sessionStateDTO) snapshot() *SessionSnapshot {
	answers := d.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	return &SessionSnapshot{
		SessionID:        d.SessionID,
		TestID:           d.TestID,
		Answers:          answers,
		RemainingSeconds: d.RemainingSeconds,
		WarningCount:     d.WarningCount,
		Locked:           d.Locked,
	}
}

// StartSession implements Collaborator.
func (h *HTTPCollaborator) StartSession(ctx context.Context, testID string) (*SessionSnapshot, error) {
	var dto sessionStateDTO
	err := h.do(ctx, http.MethodPost, "/api/v1/student/sessions",
		map[string]string{"test_id": testID}, &dto)
	if err != nil {
		return nil, err
	}
	snap := dto.snapshot()
	if snap.TestID == "" {
		snap.TestID = testID
	}
	return snap, nil
}

// ActiveSession implements Collaborator.
func (h *HTTPCollaborator) ActiveSession(ctx context.Context, testID string) (*SessionSnapshot, error) {
	var dto sessionStateDTO
	err := h.do(ctx, http.MethodGet, "/api/v1/student/tests/"+url.PathEscape(testID)+"/session", nil, &dto)
	if err != nil {
		return nil, err
	}
	return dto.snapshot(), nil
}

// SessionState implements Collaborator.
func (h *HTTPCollaborator) SessionState(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	var dto sessionStateDTO
	err := h.do(ctx, http.MethodGet, "/api/v1/student/sessions/"+url.PathEscape(sessionID), nil, &dto)
	if err != nil {
		return nil, err
	}
	return dto.snapshot(), nil
}

// SaveAnswers implements Collaborator.
func (h *HTTPCollaborator) SaveAnswers(ctx context.Context, sessionID string, answers map[string]string) error {
	return h.do(ctx, http.MethodPut, "/api/v1/student/sessions/"+url.PathEscape(sessionID)+"/answers",
		map[string]any{"answers": answers}, nil)
}

// SubmitSession implements Collaborator.
func (h *HTTPCollaborator) SubmitSession(ctx context.Context, sessionID, reason string) (*SubmitOutcome, error) {
	var dto struct {
		Score   float64 `json:"score"`
		Expired bool    `json:"expired"`
	}
	err := h.do(ctx, http.MethodPost, "/api/v1/student/sessions/"+url.PathEscape(sessionID)+"/submit",
		map[string]string{"reason": reason}, &dto)
	if err != nil {
		return nil, err
	}
	return &SubmitOutcome{Score: dto.Score, Expired: dto.Expired}, nil
}

// VerifyUnbanCode implements Collaborator.
func (h *HTTPCollaborator) VerifyUnbanCode(ctx context.Context, sessionID, code string) error {
	return h.do(ctx, http.MethodPost, "/api/v1/student/sessions/"+url.PathEscape(sessionID)+"/unban",
		map[string]string{"code": code}, nil)
}

// TestInfo implements Collaborator.
func (h *HTTPCollaborator) TestInfo(ctx context.Context, testID string) (*TestInfo, error) {
	var dto struct {
		Test struct {
			ID               string   `json:"id"`
			Title            string   `json:"title"`
			TimeLimitMinutes int      `json:"time_limit"`
			TotalQuestions   int      `json:"total_questions"`
			TargetGrades     []string `json:"target_grades"`
		} `json:"test"`
	}
	err := h.do(ctx, http.MethodGet, "/api/v1/student/tests/"+url.PathEscape(testID), nil, &dto)
	if err != nil {
		return nil, err
	}
	return &TestInfo{
		TestID:           dto.Test.ID,
		Title:            dto.Test.Title,
		TimeLimitMinutes: dto.Test.TimeLimitMinutes,
		TotalQuestions:   dto.Test.TotalQuestions,
		TargetGrades:     dto.Test.TargetGrades,
	}, nil
}

// Questions implements Collaborator.
func (h *HTTPCollaborator) Questions(ctx context.Context, testID string) ([]Question, error) {
	var dto struct {
		Questions []struct {
			ID           string   `json:"id"`
			QuestionText string   `json:"question_text"`
			QuestionType string   `json:"question_type"`
			Options      []string `json:"options"`
			ImageURL     *string  `json:"image_url"`
			OrderNum     int      `json:"order_num"`
		} `json:"questions"`
	}
	err := h.do(ctx, http.MethodGet, "/api/v1/student/tests/"+url.PathEscape(testID)+"/questions", nil, &dto)
	if err != nil {
		return nil, err
	}

	questions := make([]Question, 0, len(dto.Questions))
	for _, q := range dto.Questions {
		question := Question{
			ID:       q.ID,
			Text:     q.QuestionText,
			Type:     q.QuestionType,
			Options:  q.Options,
			OrderNum: q.OrderNum,
		}
		if q.ImageURL != nil {
			question.ImageURL = *q.ImageURL
		}
		questions = append(questions, question)
	}
	return questions, nil
}

// Attempts implements Collaborator.
func (h *HTTPCollaborator) Attempts(ctx context.Context, testID string) ([]Attempt, error) {
	path := "/api/v1/student/attempts"
	if testID != "" {
		path += "?test_id=" + url.QueryEscape(testID)
	}
	var dto struct {
		Attempts []struct {
			TestID string  `json:"test_id"`
			Score  float64 `json:"score"`
		} `json:"attempts"`
	}
	if err := h.do(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, err
	}

	attempts := make([]Attempt, 0, len(dto.Attempts))
	for _, a := range dto.Attempts {
		attempts = append(attempts, Attempt{TestID: a.TestID, Score: a.Score})
	}
	return attempts, nil
}
