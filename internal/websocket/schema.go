package websocket

import "github.com/stemsi/testhub-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the union of every client message; Action selects
// which fields are read.
type RequestPayload struct {
	Action Action `json:"action"`

	// autosave
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`

	// submit: answers given here override the autosaved ones.
	Answers map[string]string `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState  Event = "state"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
	EventError  Event = "error"
)

// StateResponse is sent once after the connection is accepted.
type StateResponse struct {
	Event   Event          `json:"event"`
	Attempt *model.Attempt `json:"attempt"`
}

type SavedResponse struct {
	Event            Event  `json:"event"`
	QID              string `json:"q_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type GradedResponse struct {
	Event  Event             `json:"event"`
	Result *model.TestResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
