package host

import (
	"github.com/b1naryth1ef/meshpipe"
)

// WorkerFor picks the worker for a position. With preferStable set, a region that still has
// work in flight goes to worker 0 so rapid edits of the same region cannot race each other on
// two different workers.
func (h *Host) WorkerFor(pos meshpipe.BlockPos, preferStable bool) int {
	if preferStable && h.tracker.Outstanding(meshpipe.RegionKeyOf(pos)) > 0 {
		return 0
	}
	return WorkerIndex(pos, h.WorkerCount())
}

// InView reports whether pos lies within the view radius around the viewer, in chunks.
func (h *Host) InView(pos meshpipe.BlockPos) bool {
	dx := meshpipe.FloorDiv(pos.X, meshpipe.RegionSize) - meshpipe.FloorDiv(h.viewer.X, meshpipe.RegionSize)
	dz := meshpipe.FloorDiv(pos.Z, meshpipe.RegionSize) - meshpipe.FloorDiv(h.viewer.Z, meshpipe.RegionSize)
	return abs(dx) <= h.opts.ViewDistance && abs(dz) <= h.opts.ViewDistance
}

// MarkDirty requests a remesh of the region containing pos. value=false clears work pending for
// a region instead and does nothing when none is outstanding. Marks outside the view radius or
// made before the workers exist are dropped.
func (h *Host) MarkDirty(pos meshpipe.BlockPos, value, preferStable bool) bool {
	h.events.emitDispatch(Dispatch{Kind: DispatchDirty, Pos: pos, Value: value, Stable: preferStable})
	return h.markDirty(pos, value, preferStable)
}

func (h *Host) markDirty(pos meshpipe.BlockPos, value, preferStable bool) bool {
	if h.WorkerCount() == 0 || !h.InView(pos) {
		return false
	}
	key := meshpipe.RegionKeyOf(pos)
	if !value && h.tracker.Outstanding(key) == 0 {
		return false
	}

	worker := h.WorkerFor(pos, preferStable)
	h.tracker.Arm(key)
	h.send(worker, meshpipe.MarkDirty{Pos: pos, Value: value, Config: h.opts.Mesher})

	h.stats.dispatched++
	h.stats.worker(worker).Dispatched++
	h.events.emitDirty(DirtyEvent{Key: key, Pos: pos, Worker: worker, Value: value})
	return true
}

// SetBlockState applies an edit to every worker mirror and remeshes the affected regions.
// An empty state only refreshes the chunk's custom models.
func (h *Host) SetBlockState(pos meshpipe.BlockPos, state string, needAO bool) {
	h.events.emitDispatch(Dispatch{Kind: DispatchEdit, Pos: pos, State: state, AO: needAO})
	h.setBlockState(pos, state, needAO)
}

func (h *Host) setBlockState(pos meshpipe.BlockPos, state string, needAO bool) {
	h.broadcast(meshpipe.BlockEdit{
		Pos:          pos,
		State:        state,
		CustomModels: h.customModels[meshpipe.ChunkKeyOf(pos)],
	})

	h.markDirty(pos, true, true)
	if !h.opts.NeighborChunkUpdates {
		return
	}
	for _, off := range NeighborOffsets(pos, needAO) {
		h.markDirty(pos.Offset(off.X, off.Y, off.Z), true, true)
	}
}

// SetCustomModel installs or clears (empty model) a custom block model and remeshes the block.
func (h *Host) SetCustomModel(pos meshpipe.BlockPos, model string) {
	chunk := meshpipe.ChunkKeyOf(pos)
	models := h.customModels[chunk]
	if model == "" {
		delete(models, pos)
		if len(models) == 0 {
			delete(h.customModels, chunk)
		}
	} else {
		if models == nil {
			models = make(map[meshpipe.BlockPos]string)
			h.customModels[chunk] = models
		}
		models[pos] = model
	}
	h.SetBlockState(pos, "", true)
}

// QueryCustomModel asks worker 0 for the custom model it holds at pos. The answer arrives as a
// custom model event.
func (h *Host) QueryCustomModel(pos meshpipe.BlockPos) {
	if h.WorkerCount() == 0 {
		return
	}
	h.send(0, meshpipe.QueryCustomModel{Pos: pos})
}

// NeighborOffsets lists the neighbouring regions an edit at pos invalidates. Faces on a region
// boundary reach across it. With AO recalculation the four top-view diagonals follow, and on
// the bottom face of a region also the side and corner regions below. Regions above are never
// reached diagonally.
func NeighborOffsets(pos meshpipe.BlockPos, needAO bool) []meshpipe.BlockPos {
	const s = meshpipe.RegionSize
	lx, ly, lz := meshpipe.Mod(pos.X, s), meshpipe.Mod(pos.Y, s), meshpipe.Mod(pos.Z, s)
	var out []meshpipe.BlockPos
	add := func(dx, dy, dz int) {
		out = append(out, meshpipe.BlockPos{X: dx, Y: dy, Z: dz})
	}

	if lx == 0 {
		add(-s, 0, 0)
	}
	if lx == s-1 {
		add(s, 0, 0)
	}
	if ly == 0 {
		add(0, -s, 0)
	}
	if ly == s-1 {
		add(0, s, 0)
	}
	if lz == 0 {
		add(0, 0, -s)
	}
	if lz == s-1 {
		add(0, 0, s)
	}

	if !needAO {
		return out
	}

	// top view diagonals
	if lx == 0 && lz == 0 {
		add(-s, 0, -s)
	}
	if lx == s-1 && lz == 0 {
		add(s, 0, -s)
	}
	if lx == 0 && lz == s-1 {
		add(-s, 0, s)
	}
	if lx == s-1 && lz == s-1 {
		add(s, 0, s)
	}

	if ly != 0 {
		return out
	}

	// side diagonals, downwards only
	if lx == 0 {
		add(-s, -s, 0)
	}
	if lx == s-1 {
		add(s, -s, 0)
	}
	if lz == 0 {
		add(0, -s, -s)
	}
	if lz == s-1 {
		add(0, -s, s)
	}

	// corners below
	if lx == 0 && lz == 0 {
		add(-s, -s, -s)
	}
	if lx == s-1 && lz == 0 {
		add(s, -s, -s)
	}
	if lx == 0 && lz == s-1 {
		add(-s, -s, s)
	}
	if lx == s-1 && lz == s-1 {
		add(s, -s, s)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
