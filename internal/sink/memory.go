package sink

import (
	"sync"
	"time"

	"github.com/coreman2200/arcaluminis/internal/zone"
)

// Memory is an in-memory Sink for tests and dry runs. It records every
// delivered vector and can be scripted to fail.
type Memory struct {
	mu     sync.Mutex
	zones  int
	script []error
	sent   []zone.Vector
	calls  int

	// Delay, if set, is slept inside every Send to mimic a slow device.
	Delay time.Duration
}

// NewMemory returns a Memory whose first len(script) sends return the given
// errors in order (nil entries succeed). zones 0 accepts any length.
func NewMemory(zones int, script ...error) *Memory {
	return &Memory{zones: zones, script: script}
}

func (m *Memory) Zones() int { return m.zones }

// Fail queues more scripted results.
func (m *Memory) Fail(errs ...error) {
	m.mu.Lock()
	m.script = append(m.script, errs...)
	m.mu.Unlock()
}

func (m *Memory) Send(v zone.Vector) error {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.script) > 0 {
		err := m.script[0]
		m.script = m.script[1:]
		if err != nil {
			return err
		}
	}
	if err := checkZones(m.zones, v); err != nil {
		return err
	}
	m.sent = append(m.sent, v.Clone())
	return nil
}

// Calls counts every Send, including failed ones.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Sent returns copies of the delivered vectors in order.
func (m *Memory) Sent() []zone.Vector {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]zone.Vector, len(m.sent))
	for i, v := range m.sent {
		out[i] = v.Clone()
	}
	return out
}

func (m *Memory) Last() (zone.Vector, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil, false
	}
	return m.sent[len(m.sent)-1].Clone(), true
}
