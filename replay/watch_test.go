package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

func TestWatchSet(t *testing.T) {
	w := NewWatchSet()
	if err := w.Wait(context.Background()); err != nil {
		t.Fatalf("empty set blocked: %v", err)
	}

	a := meshpipe.RegionKey{X: 0, Y: 16, Z: 0}
	b := meshpipe.RegionKey{X: -16, Y: 0, Z: 32}
	w.Add(a)
	w.Add(a)
	w.Add(b)
	if w.Len() != 3 {
		t.Fatalf("len = %d", w.Len())
	}
	if w.Done(meshpipe.RegionKey{X: 512}) {
		t.Fatalf("ack for an unwatched region was counted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wait returned %v with marks pending", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Wait(context.Background())
	}()
	w.Done(a)
	w.Done(b)
	w.Done(a)

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("wait never returned")
	}

	// the set can be reused once drained
	w.Add(b)
	if w.Len() != 1 {
		t.Fatalf("len = %d", w.Len())
	}
}
