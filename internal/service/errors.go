package service

import "errors"

// Domain errors surfaced to handlers.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrExamNotFound    = errors.New("exam not found")
	ErrExamGeneration  = errors.New("exam generation failed")
	ErrInvalidExamID   = errors.New("invalid exam id")
	ErrAttemptNotSaved = errors.New("attempt could not be saved")

	ErrUnknownEventKind = errors.New("unknown proctor event kind")
)
