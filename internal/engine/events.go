package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

type EventKind int

const (
	StateChanged EventKind = iota
	FrameDropped
	VectorDropped
	SinkBusy
	CaptureRetried
	Delivered
)

func (k EventKind) String() string {
	switch k {
	case StateChanged:
		return "state_changed"
	case FrameDropped:
		return "frame_dropped"
	case VectorDropped:
		return "vector_dropped"
	case SinkBusy:
		return "sink_busy"
	case CaptureRetried:
		return "capture_retried"
	case Delivered:
		return "delivered"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is informational; nothing the engine does depends on whether events
// are read.
type Event struct {
	Kind  EventKind `json:"kind"`
	Time  time.Time `json:"time"`
	From  State     `json:"from"`
	To    State     `json:"to"`
	Err   error     `json:"-"`
	Stats Stats     `json:"stats"`
}

// Stats are per-run counters, reset when a run starts.
type Stats struct {
	Captured       uint64 `json:"captured"`
	FramesDropped  uint64 `json:"frames_dropped"`
	VectorsDropped uint64 `json:"vectors_dropped"`
	SinkBusy       uint64 `json:"sink_busy"`
	Delivered      uint64 `json:"delivered"`
	CaptureRetries uint64 `json:"capture_retries"`
}

type counters struct {
	captured, framesDropped, vectorsDropped, sinkBusy, delivered, retries atomic.Uint64
}

func (c *counters) reset() {
	for _, v := range []*atomic.Uint64{&c.captured, &c.framesDropped, &c.vectorsDropped, &c.sinkBusy, &c.delivered, &c.retries} {
		v.Store(0)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Captured:       c.captured.Load(),
		FramesDropped:  c.framesDropped.Load(),
		VectorsDropped: c.vectorsDropped.Load(),
		SinkBusy:       c.sinkBusy.Load(),
		Delivered:      c.delivered.Load(),
		CaptureRetries: c.retries.Load(),
	}
}

// broadcaster fans events out to subscribers without ever blocking the sender;
// a subscriber that falls behind misses events.
type broadcaster struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newBroadcaster() *broadcaster { return &broadcaster{subs: map[int]chan Event{}} }

func (b *broadcaster) subscribe(buf int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, buf)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
