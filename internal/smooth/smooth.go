// Package smooth blends successive zone colors so the keyboard does not jump
// between frames.
package smooth

import (
	"math"

	"github.com/coreman2200/arcaluminis/internal/zone"
)

// ClampFactor forces f into 0..1. NaN is treated as 1 (no smoothing).
func ClampFactor(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 1
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Blend returns prev + factor*(incoming-prev) per channel as a new vector.
// factor 1 yields incoming exactly and factor 0 yields prev exactly. A prev of
// the wrong length is treated as black.
func Blend(prev, incoming zone.Vector, factor float64) zone.Vector {
	if len(prev) != len(incoming) {
		prev = zone.NewVector(len(incoming))
	}
	out := make(zone.Vector, len(incoming))
	zone.Mix(out, prev, incoming, ClampFactor(factor))
	return out
}

// Smoother owns the previously emitted vector for one run. It starts black,
// so a factor below 1 fades in and a factor of 0 holds black forever.
// A Smoother is used by a single goroutine.
type Smoother struct {
	factor float64
	state  zone.Vector
}

func New(factor float64, zones int) *Smoother {
	return &Smoother{factor: ClampFactor(factor), state: zone.NewVector(zones)}
}

func (s *Smoother) Factor() float64 { return s.factor }

// Smooth blends incoming into the state and returns the new output. The state
// is swapped only after the blend is complete; the returned vector is a copy
// the caller may hand off.
func (s *Smoother) Smooth(incoming zone.Vector) zone.Vector {
	next := Blend(s.state, incoming, s.factor)
	s.state = next
	return next.Clone()
}

// State returns a copy of the last output.
func (s *Smoother) State() zone.Vector { return s.state.Clone() }
