package engine

import "sync"

// mailbox is a single-slot hand-off between two stages. Put never blocks: a
// new item overwrites an unconsumed one, which is counted as a drop. Get blocks
// until an item arrives or the mailbox is closed; an item put before Close is
// still delivered.
type mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	item   T
	full   bool
	closed bool
	drops  uint64
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores v and reports whether an older item was discarded. Put after
// Close is a no-op.
func (m *mailbox[T]) Put(v T) (dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if m.full {
		m.drops++
		dropped = true
	}
	m.item = v
	m.full = true
	m.cond.Signal()
	return dropped
}

// Get takes the pending item. ok is false once the mailbox is closed and empty.
func (m *mailbox[T]) Get() (v T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.full && !m.closed {
		m.cond.Wait()
	}
	if !m.full {
		return v, false
	}
	v = m.item
	var zero T
	m.item = zero
	m.full = false
	return v, true
}

func (m *mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Len is 0 or 1.
func (m *mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return 1
	}
	return 0
}

func (m *mailbox[T]) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
