package host

import (
	"testing"

	"github.com/b1naryth1ef/meshpipe"
)

func mustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	fn()
}

func TestTrackerAckUnknownRegionPanics(t *testing.T) {
	tr := NewTracker(testWorld)
	mustPanic(t, func() {
		tr.Ack(meshpipe.RegionKey{X: 0, Y: 0, Z: 0})
	})
}

func TestTrackerFinishesChunk(t *testing.T) {
	tr := NewTracker(testWorld)
	chunk := meshpipe.ChunkKey{X: 16, Z: -32}
	tr.Load(chunk)

	for y := 0; y < 256; y += meshpipe.RegionSize {
		tr.Arm(chunk.Region(y))
	}
	tr.Arm(chunk.Region(0))

	remaining, regionDone, _ := tr.Ack(chunk.Region(0))
	if remaining != 1 || regionDone {
		t.Fatalf("first ack: remaining=%d done=%v", remaining, regionDone)
	}

	for y := 0; y < 256; y += meshpipe.RegionSize {
		_, regionDone, chunkDone := tr.Ack(chunk.Region(y))
		if !regionDone {
			t.Fatalf("region %d not finished", y)
		}
		if chunkDone != (y == 240) {
			t.Fatalf("chunkDone=%v at y=%d", chunkDone, y)
		}
	}
	if !tr.AllFinished() || tr.FinishedRegionCount() != 16 {
		t.Fatalf("all finished = %v, regions = %d", tr.AllFinished(), tr.FinishedRegionCount())
	}

	// a remesh of a finished chunk does not finish it again
	tr.Arm(chunk.Region(32))
	if _, regionDone, chunkDone := tr.Ack(chunk.Region(32)); !regionDone || chunkDone {
		t.Fatalf("remesh: regionDone=%v chunkDone=%v", regionDone, chunkDone)
	}
}

func TestTrackerIgnoresUnloadedChunks(t *testing.T) {
	tr := NewTracker(testWorld)
	key := meshpipe.RegionKey{X: 0, Y: 0, Z: 0}
	tr.Arm(key)

	remaining, regionDone, chunkDone := tr.Ack(key)
	if remaining != 0 || regionDone || chunkDone {
		t.Fatalf("ack for unloaded chunk: %d %v %v", remaining, regionDone, chunkDone)
	}
	if tr.RegionFinished(key) || tr.OutstandingRegions() != 0 {
		t.Fatalf("unloaded region recorded")
	}
}

func TestTrackerUnloadKeepsRequestsArmed(t *testing.T) {
	tr := NewTracker(testWorld)
	chunk := meshpipe.ChunkKey{}
	tr.Load(chunk)
	tr.Arm(chunk.Region(0))

	if !tr.Unload(chunk) {
		t.Fatalf("unload of a loaded chunk failed")
	}
	if tr.Unload(chunk) {
		t.Fatalf("second unload succeeded")
	}
	if tr.Outstanding(chunk.Region(0)) != 1 {
		t.Fatalf("unload dropped an in-flight request")
	}
	tr.Ack(chunk.Region(0))
	if tr.FinishedRegionCount() != 0 {
		t.Fatalf("late ack recorded a finished region")
	}
}

func TestTrackerReloadForgetsCompletion(t *testing.T) {
	tr := NewTracker(testWorld)
	chunk := meshpipe.ChunkKey{}
	tr.Load(chunk)
	for y := 0; y < 256; y += meshpipe.RegionSize {
		tr.Arm(chunk.Region(y))
		tr.Ack(chunk.Region(y))
	}
	if !tr.ChunkFinished(chunk) {
		t.Fatalf("chunk not finished")
	}

	tr.Load(chunk)
	if tr.ChunkFinished(chunk) || tr.FinishedRegionCount() != 0 {
		t.Fatalf("reload kept completion state")
	}
	if tr.AllFinished() {
		t.Fatalf("reloaded chunk counted as finished")
	}

	tr.Clear()
	if tr.LoadedCount() != 0 || !tr.AllFinished() {
		t.Fatalf("clear kept state")
	}
}
