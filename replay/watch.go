package replay

import (
	"context"
	"sync"

	"github.com/b1naryth1ef/meshpipe"
)

// WatchSet counts dirty marks that have been sent but not yet acknowledged. Wait returns once
// the count drops to zero.
type WatchSet struct {
	mu      sync.Mutex
	pending map[meshpipe.RegionKey]int
	total   int
	empty   chan struct{}
}

func NewWatchSet() *WatchSet {
	w := &WatchSet{
		pending: make(map[meshpipe.RegionKey]int),
		empty:   make(chan struct{}),
	}
	close(w.empty)
	return w
}

func (w *WatchSet) Add(key meshpipe.RegionKey) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.total == 0 {
		w.empty = make(chan struct{})
	}
	w.pending[key]++
	w.total++
}

// Done records one ack for key. Acks for regions that are not being watched are ignored.
func (w *WatchSet) Done(key meshpipe.RegionKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.pending[key]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(w.pending, key)
	} else {
		w.pending[key] = n - 1
	}
	w.total--
	if w.total == 0 {
		close(w.empty)
	}
	return true
}

func (w *WatchSet) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Wait blocks until nothing is pending or ctx is done.
func (w *WatchSet) Wait(ctx context.Context) error {
	w.mu.Lock()
	empty := w.empty
	w.mu.Unlock()

	select {
	case <-empty:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
