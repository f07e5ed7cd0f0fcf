package engine

import "fmt"

// State is the scheduler's lifecycle state.
type State int32

const (
	// Idle: no run is active.
	Idle State = iota
	// Running: the capture, process and dispatch stages are live.
	Running
	// Draining: Stop was requested; the in-flight frame finishes, nothing new is captured.
	Draining
	// Error: the last run ended on a fatal error. The next control call settles to Idle.
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, c := range []State{Idle, Running, Draining, Error} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}
