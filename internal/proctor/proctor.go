// Package proctor watches the page an exam runs in and rules on integrity
// signals: tab visibility, camera presence and blocked clipboard actions.
package proctor

// Visibility is the page's document visibility.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
)

func (v Visibility) String() string {
	if v == Hidden {
		return "hidden"
	}
	return "visible"
}

// PageEvent is a DOM event the monitor suppresses while an exam runs.
type PageEvent string

const (
	EventContextMenu PageEvent = "contextmenu"
	EventSelectStart PageEvent = "selectstart"
	EventCopy        PageEvent = "copy"
	EventCut         PageEvent = "cut"
	EventPaste       PageEvent = "paste"
)

// SuppressedEvents are blocked for the whole InProgress period.
var SuppressedEvents = []PageEvent{EventContextMenu, EventSelectStart, EventCopy, EventCut, EventPaste}

// Page is the host document. Every subscription returns its own unsubscribe
// func. Implementations must not invoke callbacks from inside a Subscribe
// or unsubscribe call.
type Page interface {
	OnVisibilityChange(fn func(Visibility)) (unsubscribe func())
	// Suppress prevents the default action of ev and calls fn each time it fires.
	Suppress(ev PageEvent, fn func()) (unsubscribe func())
}

// Track is a live camera track.
type Track interface {
	// OnActiveChange reports the track going inactive (ended or muted) or active again.
	OnActiveChange(fn func(active bool)) (unsubscribe func())
}

// Verdict is the ruling on a signal.
type Verdict int

const (
	Allow Verdict = iota
	Cancel
	FlagCamera
)

// Policy decides how signals affect a running exam.
type Policy struct {
	// CancelOnCameraLoss cancels the exam when the camera stops mid-exam
	// instead of only showing the inactive indicator.
	CancelOnCameraLoss bool
}

// DefaultPolicy cancels on hidden tabs and flags camera loss.
func DefaultPolicy() Policy {
	return Policy{}
}

// Visibility rules on a visibility change. Becoming visible again never
// undoes a cancellation.
func (p Policy) Visibility(v Visibility) Verdict {
	if v == Hidden {
		return Cancel
	}
	return Allow
}

// CameraLost rules on the camera going inactive mid-exam.
func (p Policy) CameraLost() Verdict {
	if p.CancelOnCameraLoss {
		return Cancel
	}
	return FlagCamera
}
