package proctor

import (
	"errors"
	"fmt"
)

// CameraFailure classifies why a camera could not be acquired. Values match
// the DOMException names browsers report from getUserMedia.
type CameraFailure string

const (
	CameraNotAllowed  CameraFailure = "NotAllowedError"
	CameraNotFound    CameraFailure = "NotFoundError"
	CameraNotReadable CameraFailure = "NotReadableError"
	CameraAborted     CameraFailure = "AbortError"
	CameraInsecure    CameraFailure = "SecurityError"
)

// CameraError is returned by camera implementations when acquisition fails.
type CameraError struct {
	Failure CameraFailure
	Err     error
}

func (e *CameraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera %s: %v", e.Failure, e.Err)
	}
	return "camera " + string(e.Failure)
}

func (e *CameraError) Unwrap() error { return e.Err }

// CameraMessage turns an acquisition error into the text shown to the candidate.
func CameraMessage(err error) string {
	msg := "Camera access denied or not available."

	var ce *CameraError
	if errors.As(err, &ce) {
		switch ce.Failure {
		case CameraNotAllowed:
			msg = "Camera access was denied by the user or browser settings. Please allow camera access."
		case CameraNotFound:
			msg = "No camera found on this device."
		case CameraNotReadable:
			msg = "Camera is already in use by another application."
		case CameraAborted:
			msg = "Camera access was aborted."
		case CameraInsecure:
			msg = "Camera access is blocked by security policy (e.g., not HTTPS)."
		}
	}
	return msg + " Please allow camera access to start the exam."
}
