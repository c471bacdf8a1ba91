package host

import (
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

// QueueChunk schedules a column for dispatch once the debounce window closes, so a burst of
// loads goes out together. With nil data the column is read from the chunk source at dispatch.
func (h *Host) QueueChunk(key meshpipe.ChunkKey, data []byte) {
	key = meshpipe.ChunkKey{X: meshpipe.Snap(key.X), Z: meshpipe.Snap(key.Z)}
	for i := range h.queued {
		if h.queued[i].key == key {
			h.queued[i].data = data
			return
		}
	}
	h.queued = append(h.queued, queuedChunk{key: key, data: data})

	if h.debounce == nil {
		h.debounce = time.NewTimer(h.opts.Debounce)
	}
}

// FlushQueued dispatches every queued column in queue order.
func (h *Host) FlushQueued() {
	h.stopDebounce()
	queued := h.queued
	h.queued = nil

	for _, q := range queued {
		data := q.data
		if data == nil {
			if h.opts.Source == nil {
				h.logf("no data and no chunk source for %v", q.key)
				continue
			}
			var err error
			data, err = h.opts.Source.ReadChunk(q.key)
			if err != nil {
				h.logf("failed to read chunk %v: %v", q.key, err)
				continue
			}
		}
		if err := h.AddColumn(q.key.X, q.key.Z, data, false); err != nil {
			h.logf("failed to dispatch chunk %v: %v", q.key, err)
		}
	}
}

// QueuedChunks is the number of columns waiting for the debounce window.
func (h *Host) QueuedChunks() int {
	return len(h.queued)
}

// AddColumn sends a column to every worker, asks worker 0 for its heightmap and marks each of
// its regions dirty. Unless this is a lighting-only update (and smooth lighting is off) the side
// neighbours are remeshed as well, since their border faces may change.
func (h *Host) AddColumn(x, z int, data []byte, lightUpdate bool) error {
	h.events.emitDispatch(Dispatch{Kind: DispatchColumn, Pos: meshpipe.BlockPos{X: x, Z: z}, LightUpdate: lightUpdate})
	return h.addColumn(x, z, data, lightUpdate)
}

func (h *Host) addColumn(x, z int, data []byte, lightUpdate bool) error {
	if h.WorkerCount() == 0 {
		return ErrNoWorkers
	}
	key := meshpipe.ChunkKey{X: meshpipe.Snap(x), Z: meshpipe.Snap(z)}
	if h.stats.loadStarted.IsZero() {
		h.stats.loadStarted = h.now()
	}

	h.tracker.Load(key)
	h.broadcast(meshpipe.LoadChunk{X: key.X, Z: key.Z, Data: data, CustomModels: h.customModels[key]})
	h.send(0, meshpipe.QueryHeightmap{X: key.X, Z: key.Z})

	const s = meshpipe.RegionSize
	neighbours := h.opts.NeighborChunkUpdates && (!lightUpdate || h.opts.Mesher.SmoothLighting)
	for y := h.opts.World.MinY; y < h.opts.World.MaxY(); y += s {
		loc := meshpipe.BlockPos{X: key.X, Y: y, Z: key.Z}
		h.markDirty(loc, true, false)
		if neighbours {
			h.markDirty(loc.Offset(-s, 0, 0), true, false)
			h.markDirty(loc.Offset(s, 0, 0), true, false)
			h.markDirty(loc.Offset(0, 0, -s), true, false)
			h.markDirty(loc.Offset(0, 0, s), true, false)
		}
	}
	return nil
}

// UnloadChunk removes a column. A pending queue entry for it is dropped as well, and a column
// that was only queued never reaches the workers.
func (h *Host) UnloadChunk(x, z int) {
	key := meshpipe.ChunkKey{X: meshpipe.Snap(x), Z: meshpipe.Snap(z)}
	for i := range h.queued {
		if h.queued[i].key == key {
			h.queued = append(h.queued[:i], h.queued[i+1:]...)
			break
		}
	}
	if len(h.queued) == 0 {
		h.stopDebounce()
	}
	if !h.tracker.Loaded(key) {
		return
	}
	h.events.emitDispatch(Dispatch{Kind: DispatchUnload, Pos: meshpipe.BlockPos{X: key.X, Z: key.Z}})
	h.removeColumn(key)
}

func (h *Host) removeColumn(key meshpipe.ChunkKey) {
	if !h.tracker.Unload(key) {
		return
	}
	h.broadcast(meshpipe.UnloadChunk{X: key.X, Z: key.Z})
	h.purgeChunk(key)

	if h.tracker.LoadedCount() == 0 {
		h.resetLocal()
	}
}

// WhenIdle runs fn as soon as no column is loaded and every request sent to the workers has
// been acknowledged: now, or once the last unload has drained.
func (h *Host) WhenIdle(fn func()) {
	if h.isIdle() {
		fn()
		return
	}
	h.idle = append(h.idle, fn)
}

func (h *Host) isIdle() bool {
	return h.tracker.LoadedCount() == 0 && h.tracker.OutstandingRequests() == 0
}

func (h *Host) checkIdle() {
	if len(h.idle) == 0 || !h.isIdle() {
		return
	}
	idle := h.idle
	h.idle = nil
	for _, fn := range idle {
		fn()
	}
}

// resetLocal runs after the last column is unloaded. Workers drop their stacked marks and
// acknowledge them, so counters still in flight drain normally.
func (h *Host) resetLocal() {
	h.broadcast(meshpipe.Reset{})
	h.tracker.ResetLocal()
	h.purgeAll()
	h.stats.loadStarted = time.Time{}
	h.logf("all chunks unloaded, local state reset")
	h.checkIdle()
}

func (h *Host) purgeChunk(key meshpipe.ChunkKey) {
	delete(h.heightmaps, key)
	delete(h.highestBlocks, key)
	delete(h.customModels, key)
	for y := h.opts.World.MinY; y < h.opts.World.MaxY(); y += meshpipe.RegionSize {
		delete(h.distances, key.Region(y))
	}
}

func (h *Host) purgeAll() {
	clear(h.heightmaps)
	clear(h.highestBlocks)
	clear(h.customModels)
	clear(h.distances)
}

func (h *Host) stopDebounce() {
	if h.debounce != nil {
		h.debounce.Stop()
		h.debounce = nil
	}
}
