package engine

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRunning = errors.New("engine: effect already running")
	ErrNotIdle        = errors.New("engine: reconfigure requires a stopped effect")
	ErrNoConfig       = errors.New("engine: no configuration accepted yet")
	ErrClosed         = errors.New("engine: closed")
)

// Cause says which side of the pipeline ended a run.
type Cause int

const (
	CauseCapture Cause = iota
	CauseSink
)

func (c Cause) String() string {
	switch c {
	case CauseCapture:
		return "capture"
	case CauseSink:
		return "sink"
	default:
		return "unknown"
	}
}

// RunError is the fatal error that moved the engine to Error.
type RunError struct {
	Cause Cause
	Err   error
}

func (e *RunError) Error() string { return fmt.Sprintf("engine: %s failed: %v", e.Cause, e.Err) }

func (e *RunError) Unwrap() error { return e.Err }
