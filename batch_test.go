package meshpipe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordedFlush struct {
	Dest  int
	Batch []int
}

func newRecordingBatcher(sched Scheduler, burst int) (*Batcher[int], *[]recordedFlush) {
	var flushes []recordedFlush
	b := NewBatcher(sched, func(dest int, batch []int) {
		flushes = append(flushes, recordedFlush{Dest: dest, Batch: batch})
	}, burst)
	return b, &flushes
}

func TestBatcherFlushesOncePerDestinationPerTick(t *testing.T) {
	sched := NewTickScheduler()
	b, flushes := newRecordingBatcher(sched, 0)

	for i := 0; i < 10; i++ {
		b.Enqueue(1, i)
		b.Enqueue(2, 100+i)
	}
	if len(*flushes) != 0 {
		t.Fatalf("flushed before the tick: %v", *flushes)
	}
	if sched.Len() != 2 {
		t.Fatalf("expected one scheduled flush per destination, got %d", sched.Len())
	}

	sched.RunPending()
	if len(*flushes) != 2 {
		t.Fatalf("expected 2 flushes, got %d", len(*flushes))
	}
	for _, f := range *flushes {
		if len(f.Batch) != 10 {
			t.Fatalf("destination %d got %d messages", f.Dest, len(f.Batch))
		}
		for i := 1; i < len(f.Batch); i++ {
			if f.Batch[i] < f.Batch[i-1] {
				t.Fatalf("destination %d out of order: %v", f.Dest, f.Batch)
			}
		}
	}

	// the next tick starts a new window
	b.Enqueue(1, 42)
	sched.RunPending()
	if got := b.Flushes(); got != 3 {
		t.Fatalf("expected 3 flushes, got %d", got)
	}
}

func TestBatcherBurstHardFlush(t *testing.T) {
	sched := NewTickScheduler()
	b, flushes := newRecordingBatcher(sched, 100)

	for i := 0; i < 150; i++ {
		b.Enqueue(0, i)
	}
	if len(*flushes) != 1 || len((*flushes)[0].Batch) != 100 {
		t.Fatalf("expected an immediate flush of 100, got %v", len(*flushes))
	}

	sched.RunPending()
	if len(*flushes) != 2 {
		t.Fatalf("expected 2 flushes, got %d", len(*flushes))
	}
	if n := len((*flushes)[1].Batch); n != 50 {
		t.Fatalf("expected the tick to flush the remaining 50, got %d", n)
	}
	if (*flushes)[1].Batch[0] != 100 {
		t.Fatalf("second batch starts at %d", (*flushes)[1].Batch[0])
	}
}

func TestBatcherSendNowKeepsOrder(t *testing.T) {
	sched := NewTickScheduler()
	b, flushes := newRecordingBatcher(sched, 0)

	b.Enqueue(3, 1)
	b.Enqueue(3, 2)
	b.SendNow(3, 3)

	want := []recordedFlush{{Dest: 3, Batch: []int{1, 2, 3}}}
	if diff := cmp.Diff(want, *flushes); diff != "" {
		t.Fatalf("unexpected flushes (-want +got):\n%s", diff)
	}

	// the flush scheduled by Enqueue finds an empty queue
	sched.RunPending()
	if len(*flushes) != 1 {
		t.Fatalf("empty queue was flushed")
	}
}

func TestBatcherImmediateScheduler(t *testing.T) {
	b, flushes := newRecordingBatcher(ImmediateScheduler{}, 0)
	b.Enqueue(0, 1)
	b.Enqueue(0, 2)
	if len(*flushes) != 2 {
		t.Fatalf("expected every enqueue to flush, got %d", len(*flushes))
	}
}

func TestBatcherDrop(t *testing.T) {
	sched := NewTickScheduler()
	b, flushes := newRecordingBatcher(sched, 0)
	b.Enqueue(0, 1)
	b.Drop()
	sched.RunPending()
	if len(*flushes) != 0 || b.Pending(0) != 0 {
		t.Fatalf("dropped messages were sent")
	}
}
