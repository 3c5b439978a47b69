// Package examsession drives one candidate's proctored exam attempt from
// loading through completion or cancellation.
package examsession

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Loading
	ReadyToStart
	InProgress
	Completed
	Canceled
)

var stateNames = [...]string{
	Idle:         "idle",
	Loading:      "loading",
	ReadyToStart: "ready",
	InProgress:   "in_progress",
	Completed:    "completed",
	Canceled:     "canceled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions happen until Close.
func (s State) Terminal() bool {
	return s == Completed || s == Canceled
}
