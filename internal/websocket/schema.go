package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionWarning  Action = "warning"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single client message shape; which fields are
// meaningful depends on Action.
type RequestPayload struct {
	Action Action `json:"action"`

	// autosave
	QID      string `json:"q_id,omitempty"`
	Answer   string `json:"ans,omitempty"`
	ClientID string `json:"client_id,omitempty"` // Echoed back for ack matching

	// warning
	WarningType string `json:"warning_type,omitempty"`
	Message     string `json:"warning_message,omitempty"`

	// submit
	Reason string `json:"reason,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventWarning Event = "warning"
	EventGraded  Event = "graded"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
)

type AutosaveResponse struct {
	Event    Event  `json:"event"`
	Status   string `json:"status"`
	ClientID string `json:"client_id,omitempty"`
}

// WarningResponse acknowledges a warning with the running count, so the
// client can show the remaining allowance or the lock screen.
type WarningResponse struct {
	Event  Event `json:"event"`
	Count  int   `json:"count"`
	Locked bool  `json:"locked"`
}

type GradedResponse struct {
	Event   Event   `json:"event"`
	Status  string  `json:"status"`
	Score   float64 `json:"score"`
	Expired bool    `json:"expired"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"time_remaining"`
}
