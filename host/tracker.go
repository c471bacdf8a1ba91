package host

import (
	"log"

	"github.com/b1naryth1ef/meshpipe"
)

// Tracker is the host's canonical view of meshing progress: outstanding requests per region,
// which chunks have been dispatched and which regions and chunks are fully meshed.
type Tracker struct {
	minY, maxY int

	outstanding     map[meshpipe.RegionKey]int
	loaded          map[meshpipe.ChunkKey]struct{}
	finishedRegions map[meshpipe.RegionKey]struct{}
	finishedChunks  map[meshpipe.ChunkKey]struct{}
}

func NewTracker(world meshpipe.WorldConfig) *Tracker {
	return &Tracker{
		minY:            world.MinY,
		maxY:            world.MaxY(),
		outstanding:     make(map[meshpipe.RegionKey]int),
		loaded:          make(map[meshpipe.ChunkKey]struct{}),
		finishedRegions: make(map[meshpipe.RegionKey]struct{}),
		finishedChunks:  make(map[meshpipe.ChunkKey]struct{}),
	}
}

// Arm records one more request in flight for key.
func (t *Tracker) Arm(key meshpipe.RegionKey) {
	t.outstanding[key]++
}

func (t *Tracker) Outstanding(key meshpipe.RegionKey) int {
	return t.outstanding[key]
}

// Ack consumes one acknowledgement. An ack for a region with nothing in flight means host and
// worker disagree about the protocol and cannot be recovered from.
func (t *Tracker) Ack(key meshpipe.RegionKey) (remaining int, regionDone, chunkDone bool) {
	n, ok := t.outstanding[key]
	if !ok {
		log.Panicf("sectionFinished for non-outstanding region %s", key)
	}
	if n <= 0 {
		log.Panicf("outstanding counter for region %s is %d", key, n)
	}

	n--
	if n > 0 {
		t.outstanding[key] = n
		return n, false, false
	}
	delete(t.outstanding, key)

	chunk := key.Chunk()
	if _, ok := t.loaded[chunk]; !ok {
		// neighbour updates for columns we never dispatched
		return 0, false, false
	}
	t.finishedRegions[key] = struct{}{}

	if _, done := t.finishedChunks[chunk]; done {
		return 0, true, false
	}
	if !t.allRegionsFinished(chunk) {
		return 0, true, false
	}
	t.finishedChunks[chunk] = struct{}{}
	return 0, true, true
}

func (t *Tracker) allRegionsFinished(chunk meshpipe.ChunkKey) bool {
	for y := t.minY; y < t.maxY; y += meshpipe.RegionSize {
		if _, ok := t.finishedRegions[chunk.Region(y)]; !ok {
			return false
		}
	}
	return true
}

// Load marks a chunk as dispatched and forgets any earlier completion state for it.
func (t *Tracker) Load(chunk meshpipe.ChunkKey) {
	t.loaded[chunk] = struct{}{}
	t.forget(chunk)
}

// Unload drops a chunk and its completion state. Outstanding requests stay armed because their
// acks are still on the way.
func (t *Tracker) Unload(chunk meshpipe.ChunkKey) bool {
	if _, ok := t.loaded[chunk]; !ok {
		return false
	}
	delete(t.loaded, chunk)
	t.forget(chunk)
	return true
}

func (t *Tracker) forget(chunk meshpipe.ChunkKey) {
	delete(t.finishedChunks, chunk)
	for y := t.minY; y < t.maxY; y += meshpipe.RegionSize {
		delete(t.finishedRegions, chunk.Region(y))
	}
}

// ResetLocal clears completion state after the last chunk is gone.
func (t *Tracker) ResetLocal() {
	clear(t.finishedRegions)
	clear(t.finishedChunks)
}

// Clear drops everything, outstanding requests included. Only valid together with a pool
// restart, since acks for the dropped requests would otherwise be fatal.
func (t *Tracker) Clear() {
	clear(t.outstanding)
	clear(t.loaded)
	t.ResetLocal()
}

func (t *Tracker) Loaded(chunk meshpipe.ChunkKey) bool {
	_, ok := t.loaded[chunk]
	return ok
}

func (t *Tracker) ChunkFinished(chunk meshpipe.ChunkKey) bool {
	_, ok := t.finishedChunks[chunk]
	return ok
}

func (t *Tracker) RegionFinished(key meshpipe.RegionKey) bool {
	_, ok := t.finishedRegions[key]
	return ok
}

func (t *Tracker) LoadedCount() int {
	return len(t.loaded)
}

func (t *Tracker) FinishedChunkCount() int {
	return len(t.finishedChunks)
}

func (t *Tracker) FinishedRegionCount() int {
	return len(t.finishedRegions)
}

// OutstandingRegions is the number of regions with work in flight.
func (t *Tracker) OutstandingRegions() int {
	return len(t.outstanding)
}

// OutstandingRequests is the total number of unacknowledged requests.
func (t *Tracker) OutstandingRequests() int {
	total := 0
	for _, n := range t.outstanding {
		total += n
	}
	return total
}

// AllFinished reports whether nothing is in flight and every loaded chunk is meshed.
func (t *Tracker) AllFinished() bool {
	return len(t.outstanding) == 0 && len(t.finishedChunks) == len(t.loaded)
}

// LoadedChunks returns the dispatched chunks in no particular order.
func (t *Tracker) LoadedChunks() []meshpipe.ChunkKey {
	out := make([]meshpipe.ChunkKey, 0, len(t.loaded))
	for k := range t.loaded {
		out = append(out, k)
	}
	return out
}
