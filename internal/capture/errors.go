package capture

import (
	"errors"
	"fmt"
)

// Kind classifies capture failures.
type Kind int

const (
	// Transient failures (busy display API, timeouts) are worth retrying.
	Transient Kind = iota
	// Fatal failures (no display, permission revoked) end the run.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	ErrNoDisplay = errors.New("no active display")
	ErrTimeout   = errors.New("capture timed out")
	ErrNoFrame   = errors.New("grabber returned no frame")
)

// CaptureError is returned by grabbers instead of a frame.
type CaptureError struct {
	Kind Kind
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture (%s): %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func TransientError(err error) error { return &CaptureError{Kind: Transient, Err: err} }

func FatalError(err error) error { return &CaptureError{Kind: Fatal, Err: err} }

// IsFatal reports whether err is a fatal CaptureError.
func IsFatal(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce) && ce.Kind == Fatal
}

// IsTransient reports whether err should be retried. Errors that carry no
// classification are treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind == Transient
	}
	return true
}
