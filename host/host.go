// Package host coordinates a pool of meshing workers from a single goroutine: it decides which
// worker meshes which region, tracks every request until it is acknowledged and drains worker
// output without starving the render loop.
package host

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/b1naryth1ef/meshpipe"
	"github.com/b1naryth1ef/meshpipe/mesher"
)

var ErrNoWorkers = errors.New("workers not initialized")

// GeometrySink receives finished meshes. Uploading them to the GPU is its business.
type GeometrySink interface {
	Accept(key meshpipe.RegionKey, geometry *meshpipe.Geometry, worker int)
}

type Options struct {
	World        meshpipe.WorldConfig
	Mesher       meshpipe.MesherConfig
	Assets       *meshpipe.Assets
	ViewDistance int

	NeighborChunkUpdates bool

	DrainBudget time.Duration
	Smoothing   bool
	Debounce    time.Duration
	FramePeriod time.Duration

	Pools    PoolFactory
	Frames   *Frames
	Renderer GeometrySink
	Source   meshpipe.ChunkSource

	Now    func() time.Time
	Logger *log.Logger
}

// OptionsFromConfig maps a decoded config file onto host options.
func OptionsFromConfig(cfg *meshpipe.Config, assets *meshpipe.Assets) Options {
	return Options{
		World:                cfg.WorldConfig(),
		Mesher:               cfg.MesherConfig(),
		Assets:               assets,
		ViewDistance:         cfg.ViewDistance,
		NeighborChunkUpdates: *cfg.Meshing.NeighborChunkUpdates,
		DrainBudget:          cfg.DrainBudget(),
		Smoothing:            *cfg.Inbound.Smoothing,
		Debounce:             cfg.Debounce(),
		FramePeriod:          cfg.FramePeriod(),
		Pools: GoroutinePoolFactory(mesher.WorkerOpts{
			Period: cfg.TickPeriod(),
			Burst:  cfg.Meshing.WorkerBurst,
		}),
	}
}

type queuedChunk struct {
	key  meshpipe.ChunkKey
	data []byte
}

// Host owns all canonical meshing state. Its methods must be called from one goroutine: the
// one running Run, or the caller's own when Run is not used.
type Host struct {
	opts   Options
	log    *log.Logger
	now    func() time.Time
	viewer meshpipe.BlockPos

	pool    Pool
	sched   *meshpipe.TickScheduler
	batcher *meshpipe.Batcher[meshpipe.HostMessage]
	inbound *Inbound
	frames  *Frames
	events  Events
	tracker *Tracker
	stats   telemetry

	// force sends every message immediately instead of batching it
	force bool

	queued        []queuedChunk
	debounce      *time.Timer
	customModels  map[meshpipe.ChunkKey]map[meshpipe.BlockPos]string
	heightmaps    map[meshpipe.ChunkKey][meshpipe.RegionSize * meshpipe.RegionSize]byte
	highestBlocks map[meshpipe.ChunkKey]map[meshpipe.ColumnPos]int
	distances     map[meshpipe.RegionKey]float64
	modelInfo     map[string]string

	idle  []func()
	calls chan func()
}

func New(opts Options) *Host {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Frames == nil {
		opts.Frames = NewFrames(false)
	}
	if opts.Assets == nil {
		opts.Assets = meshpipe.NewAssets(opts.World.Version)
	}
	if opts.FramePeriod <= 0 {
		opts.FramePeriod = time.Second / 60
	}

	h := &Host{
		opts:          opts,
		log:           opts.Logger,
		now:           opts.Now,
		sched:         meshpipe.NewTickScheduler(),
		frames:        opts.Frames,
		tracker:       NewTracker(opts.World),
		customModels:  make(map[meshpipe.ChunkKey]map[meshpipe.BlockPos]string),
		heightmaps:    make(map[meshpipe.ChunkKey][meshpipe.RegionSize * meshpipe.RegionSize]byte),
		highestBlocks: make(map[meshpipe.ChunkKey]map[meshpipe.ColumnPos]int),
		distances:     make(map[meshpipe.RegionKey]float64),
		modelInfo:     make(map[string]string),
		calls:         make(chan func()),
	}
	h.batcher = meshpipe.NewBatcher(h.sched, h.post, 0)
	h.inbound = NewInbound(opts.DrainBudget, opts.Smoothing, h.frames, h.now, h.handleWorkerMessage)
	return h
}

func (h *Host) Events() *Events {
	return &h.events
}

func (h *Host) Frames() *Frames {
	return h.frames
}

func (h *Host) Tracker() *Tracker {
	return h.tracker
}

// InitWorkers starts n meshing workers plus worker 0, and sends each of them the world config
// and meshing assets. A running pool is torn down first, as in Reset.
func (h *Host) InitWorkers(n int) {
	if h.pool != nil {
		h.teardown()
	}
	h.pool = h.opts.Pools(n + 1)
	h.stats.reset(h.pool.Size())

	for i := 0; i < h.pool.Size(); i++ {
		h.send(i, meshpipe.SetWorldConfig{Config: h.opts.World})
		h.send(i, meshpipe.SetMeshingAssets{Assets: h.opts.Assets})
	}
	h.logf("started %d workers", h.pool.Size())
}

func (h *Host) WorkerCount() int {
	if h.pool == nil {
		return 0
	}
	return h.pool.Size()
}

// SetMeshingAssets pushes new assets to every worker and remeshes everything loaded.
func (h *Host) SetMeshingAssets(assets *meshpipe.Assets) {
	h.opts.Assets = assets
	for i := 0; i < h.WorkerCount(); i++ {
		h.send(i, meshpipe.SetMeshingAssets{Assets: assets})
	}
	for _, chunk := range h.tracker.LoadedChunks() {
		for y := h.opts.World.MinY; y < h.opts.World.MaxY(); y += meshpipe.RegionSize {
			h.markDirty(meshpipe.BlockPos{X: chunk.X, Y: y, Z: chunk.Z}, true, false)
		}
	}
}

// Reset restarts the pool and forgets all state, including requests still in flight.
func (h *Host) Reset() {
	workers := h.WorkerCount()
	h.teardown()
	if workers > 0 {
		h.InitWorkers(workers - 1)
	}
}

// teardown stops the pool and drops everything addressed to or expected from it. Requests the
// old workers never answered are forgotten, so the tracker cannot stay busy forever.
func (h *Host) teardown() {
	if h.pool != nil {
		h.pool.Stop()
		h.pool = nil
	}
	h.batcher.Drop()
	h.inbound.Clear()
	h.tracker.Clear()
	h.queued = nil
	h.stopDebounce()
	h.purgeAll()
	h.stats.loadStarted = time.Time{}
	h.checkIdle()
}

// SetViewer moves the centre of the view radius.
func (h *Host) SetViewer(pos meshpipe.BlockPos) {
	h.viewer = pos
}

// SetForce toggles unbatched dispatch. The replay session uses it to keep its calls in lock
// step with the workers.
func (h *Host) SetForce(force bool) {
	h.force = force
}

// Pump moves everything the workers posted into the inbound FIFO and drains it.
func (h *Host) Pump() {
	if h.pool == nil {
		return
	}
	for _, batch := range h.pool.Inbox().Take() {
		h.inbound.Push(batch...)
	}
	h.inbound.Drain()
}

// RunPending flushes outbound batches queued during the current tick.
func (h *Host) RunPending() {
	h.sched.RunPending()
}

// Do runs fn on the host goroutine and waits for it. Only valid while Run is active.
func (h *Host) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case h.calls <- func() {
		defer close(done)
		fn()
	}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the host event loop: worker output, cross-goroutine calls, frames and the streaming
// debounce are all handled here, one at a time. While it runs the frame source is active.
func (h *Host) Run(ctx context.Context) error {
	frames := time.NewTicker(h.opts.FramePeriod)
	defer frames.Stop()

	// frames are painted here, so draining is budgeted against them
	h.frames.SetActive(true)
	defer h.frames.SetActive(false)
	defer func() {
		if h.pool != nil {
			h.pool.Stop()
		}
	}()

	for {
		var inbox <-chan struct{}
		if h.pool != nil {
			inbox = h.pool.Inbox().Ready()
		}
		var debounce <-chan time.Time
		if h.debounce != nil {
			debounce = h.debounce.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-inbox:
			h.Pump()
		case fn := <-h.calls:
			fn()
		case now := <-frames.C:
			h.frames.Frame(now)
		case <-debounce:
			h.debounce = nil
			h.FlushQueued()
		}
		h.RunPending()
	}
}

// Stats snapshots the pipeline for the overlay.
func (h *Host) Stats() Stats {
	s := Stats{
		Workers:             append([]WorkerStats(nil), h.stats.workers...),
		LoadedChunks:        h.tracker.LoadedCount(),
		FinishedChunks:      h.tracker.FinishedChunkCount(),
		QueuedChunks:        len(h.queued),
		FinishedRegions:     h.tracker.FinishedRegionCount(),
		OutstandingRegions:  h.tracker.OutstandingRegions(),
		OutstandingRequests: h.tracker.OutstandingRequests(),
		InboundQueue:        h.inbound.Len(),
		Dispatched:          h.stats.dispatched,
		Acked:               h.stats.acked,
		Geometries:          h.stats.geometries,
		BlockCount:          h.stats.blockCount,
		Flushes:             h.batcher.Flushes(),
		DrainYields:         h.inbound.Yields(),
		ChunkLoadTime:       h.stats.chunkLoadTime,
		Warnings:            append([]string(nil), h.stats.warnings...),
	}
	return s
}

// Heightmap returns the cached heightmap of a chunk.
func (h *Host) Heightmap(key meshpipe.ChunkKey) ([meshpipe.RegionSize * meshpipe.RegionSize]byte, bool) {
	hm, ok := h.heightmaps[key]
	return hm, ok
}

// HighestBlock returns the highest meshed block at a world column.
func (h *Host) HighestBlock(x, z int) (int, bool) {
	chunk := meshpipe.ChunkKeyOf(meshpipe.BlockPos{X: x, Z: z})
	y, ok := h.highestBlocks[chunk][meshpipe.ColumnPos{X: x, Z: z}]
	return y, ok
}

// RegionDistance is the viewer distance cached when the region's geometry last arrived.
func (h *Host) RegionDistance(key meshpipe.RegionKey) (float64, bool) {
	d, ok := h.distances[key]
	return d, ok
}

func (h *Host) ModelInfo(state string) (string, bool) {
	m, ok := h.modelInfo[state]
	return m, ok
}

func (h *Host) post(worker int, batch []meshpipe.HostMessage) {
	if h.pool == nil {
		return
	}
	h.pool.Post(worker, batch)
}

func (h *Host) send(worker int, msg meshpipe.HostMessage) {
	if h.force {
		h.batcher.SendNow(worker, msg)
		return
	}
	h.batcher.Enqueue(worker, msg)
}

func (h *Host) broadcast(msg meshpipe.HostMessage) {
	for i := 0; i < h.WorkerCount(); i++ {
		h.send(i, msg)
	}
}

func (h *Host) distanceTo(key meshpipe.RegionKey) float64 {
	half := float64(meshpipe.RegionSize) / 2
	dx := float64(key.X) + half - float64(h.viewer.X)
	dy := float64(key.Y) + half - float64(h.viewer.Y)
	dz := float64(key.Z) + half - float64(h.viewer.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (h *Host) logf(format string, args ...any) {
	h.log.Printf("[host] "+format, args...)
}
