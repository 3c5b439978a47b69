package model

import (
	"encoding/json"
	"time"
)

// ProctorEventKind names an integrity signal observed during a session.
type ProctorEventKind string

const (
	ProctorSessionStarted   ProctorEventKind = "session_started"
	ProctorVisibilityHidden ProctorEventKind = "visibility_hidden"
	ProctorCameraDenied     ProctorEventKind = "camera_denied"
	ProctorCameraLost       ProctorEventKind = "camera_lost"
	ProctorCameraRestored   ProctorEventKind = "camera_restored"
	ProctorActionBlocked    ProctorEventKind = "action_blocked"
	ProctorSessionCanceled  ProctorEventKind = "session_canceled"
	ProctorSessionCompleted ProctorEventKind = "session_completed"
)

// ProctorEvent is one persisted integrity signal.
type ProctorEvent struct {
	ExamID     string           `json:"examId"`
	UserEmail  string           `json:"userEmail"`
	Kind       ProctorEventKind `json:"kind"`
	Detail     json.RawMessage  `json:"detail,omitempty"`
	RecordedAt time.Time        `json:"recordedAt"`
}

// Valid reports whether k is a known event kind.
func (k ProctorEventKind) Valid() bool {
	switch k {
	case ProctorSessionStarted, ProctorVisibilityHidden, ProctorCameraDenied, ProctorCameraLost,
		ProctorCameraRestored, ProctorActionBlocked, ProctorSessionCanceled, ProctorSessionCompleted:
		return true
	}
	return false
}
