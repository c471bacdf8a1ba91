package meshpipe

import "sync"

// Mailbox is an unbounded, ordered queue of batches between two goroutines. Posting never
// blocks, so a host and a worker flushing into each other cannot deadlock.
type Mailbox[T any] struct {
	mu      sync.Mutex
	batches [][]T
	notify  chan struct{}
	closed  bool
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		notify: make(chan struct{}, 1),
	}
}

// Post appends a batch. Posting to a closed mailbox is a no-op.
func (m *Mailbox[T]) Post(batch []T) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.batches = append(m.batches, batch)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Ready fires when at least one batch may be waiting.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.notify
}

// Take removes and returns every waiting batch in post order.
func (m *Mailbox[T]) Take() [][]T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.batches
	m.batches = nil
	return out
}

func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.batches = nil
}
