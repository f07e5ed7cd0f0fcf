package capture

import (
	"context"
	"sync"
	"time"
)

// Step is one scripted capture outcome.
type Step struct {
	Frame *Frame
	Err   error
	Delay time.Duration
}

// Script replays a fixed sequence of outcomes, then repeats the last one.
// It is meant for tests and simulations.
type Script struct {
	mu    sync.Mutex
	steps []Step
	calls int
}

func NewScript(steps ...Step) *Script { return &Script{steps: steps} }

// Repeat returns a Script that always yields f.
func Repeat(f *Frame) *Script { return NewScript(Step{Frame: f}) }

func (s *Script) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	var st Step
	if len(s.steps) > 0 {
		if i >= len(s.steps) {
			i = len(s.steps) - 1
		}
		st = s.steps[i]
	}
	s.mu.Unlock()

	if st.Delay > 0 {
		t := time.NewTimer(st.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	if st.Err != nil {
		return nil, st.Err
	}
	if st.Frame == nil {
		return nil, TransientError(ErrNoFrame)
	}
	return st.Frame, nil
}

// Calls is the number of Capture calls so far.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
