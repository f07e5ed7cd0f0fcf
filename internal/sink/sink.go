// Package sink delivers finished zone colors to the keyboard.
//
// Zone order is positional: index i of a vector is hardware zone i. Sinks
// never reorder or pad a vector; a vector of the wrong length is rejected.
package sink

import (
	"errors"
	"fmt"

	"github.com/coreman2200/arcaluminis/internal/zone"
)

// Sink accepts one finished vector per call.
type Sink interface {
	Send(v zone.Vector) error
}

// Zoned is implemented by sinks bound to a fixed number of hardware zones.
type Zoned interface {
	Zones() int
}

type Kind int

const (
	// Busy means the device could not take this vector right now; the caller
	// should drop it and try again with the next one.
	Busy Kind = iota
	// Disconnected means the device is gone; the run must end.
	Disconnected
)

func (k Kind) String() string {
	switch k {
	case Busy:
		return "busy"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type SinkError struct {
	Kind Kind
	Err  error
}

func (e *SinkError) Error() string {
	if e.Err == nil {
		return "sink " + e.Kind.String()
	}
	return fmt.Sprintf("sink %s: %v", e.Kind, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

var (
	ErrBusy         = &SinkError{Kind: Busy}
	ErrDisconnected = &SinkError{Kind: Disconnected}
)

func BusyError(err error) error { return &SinkError{Kind: Busy, Err: err} }

func DisconnectedError(err error) error { return &SinkError{Kind: Disconnected, Err: err} }

// IsBusy reports whether err is transient backpressure.
func IsBusy(err error) bool {
	var se *SinkError
	return errors.As(err, &se) && se.Kind == Busy
}

// IsDisconnected reports whether err is a SinkError of kind Disconnected.
func IsDisconnected(err error) bool {
	var se *SinkError
	return errors.As(err, &se) && se.Kind == Disconnected
}

// ZoneCountError is returned when a vector does not match the sink's zone count.
type ZoneCountError struct {
	Want, Got int
}

func (e *ZoneCountError) Error() string {
	return fmt.Sprintf("sink expects %d zones, got %d", e.Want, e.Got)
}

func checkZones(want int, v zone.Vector) error {
	if want > 0 && len(v) != want {
		return &ZoneCountError{Want: want, Got: len(v)}
	}
	return nil
}

// Observe returns a Sink that forwards to s and, after every successful send,
// passes the vector to fn. fn must not block.
func Observe(s Sink, fn func(zone.Vector)) Sink {
	return &observed{Sink: s, fn: fn}
}

type observed struct {
	Sink
	fn func(zone.Vector)
}

func (o *observed) Send(v zone.Vector) error {
	if err := o.Sink.Send(v); err != nil {
		return err
	}
	if o.fn != nil {
		o.fn(v.Clone())
	}
	return nil
}

func (o *observed) Zones() int {
	if z, ok := o.Sink.(Zoned); ok {
		return z.Zones()
	}
	return 0
}

func (o *observed) Close() error {
	if c, ok := o.Sink.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
