package websocket

import (
	"encoding/json"
	"time"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionBegin Action = "begin"
	ActionEvent Action = "event"
	ActionPing  Action = "ping"
)

// RequestPayload is any client message on the proctor stream. Kind and
// Detail are only read for ActionEvent.
type RequestPayload struct {
	Action Action          `json:"action"`
	Kind   string          `json:"kind,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
	At     *time.Time      `json:"at,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventPong    Event = "pong"
)

// Status values carried by success events.
const (
	StatusRegistered = "registered"
	StatusRecorded   = "recorded"
)

type SuccessResponse struct {
	Event    Event      `json:"event"`
	Status   string     `json:"status"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// ResponsePayload is used by clients to decode any server event.
type ResponsePayload struct {
	Event    Event      `json:"event"`
	Status   string     `json:"status,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Error    string     `json:"error,omitempty"`
}
