package host

import (
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

type workerHandler func(h *Host, msg meshpipe.WorkerMessage)

var workerHandlers = [meshpipe.NumWorkerKinds]workerHandler{
	meshpipe.KindGeometry:          handleGeometry,
	meshpipe.KindSectionFinished:   handleSectionFinished,
	meshpipe.KindModelInfo:         handleModelInfo,
	meshpipe.KindHeightmap:         handleHeightmap,
	meshpipe.KindCustomModelResult: handleCustomModelResult,
}

func (h *Host) handleWorkerMessage(msg meshpipe.WorkerMessage) {
	workerHandlers[msg.WorkerKind()](h, msg)
}

func handleGeometry(h *Host, msg meshpipe.WorkerMessage) {
	m := msg.(meshpipe.GeometryResult)
	if m.Geometry == nil {
		return
	}

	chunk := m.Key.Chunk()
	if h.tracker.Loaded(chunk) {
		highest := h.highestBlocks[chunk]
		if highest == nil {
			highest = make(map[meshpipe.ColumnPos]int)
			h.highestBlocks[chunk] = highest
		}
		for col, y := range m.Geometry.HighestBlocks {
			if cur, ok := highest[col]; !ok || y > cur {
				highest[col] = y
			}
		}
		h.distances[m.Key] = h.distanceTo(m.Key)
	}

	h.stats.geometries++
	h.stats.blockCount += uint64(m.Geometry.BlockCount)
	h.stats.worker(m.WorkerID).Meshed++
	if m.Geometry.HadErrors {
		h.stats.warn(m.Key, m.Geometry.Warnings)
	}

	if h.opts.Renderer != nil {
		h.opts.Renderer.Accept(m.Key, m.Geometry, m.WorkerID)
	}
}

func handleSectionFinished(h *Host, msg meshpipe.WorkerMessage) {
	m := msg.(meshpipe.SectionFinished)
	remaining, _, chunkDone := h.tracker.Ack(m.Key)

	h.stats.acked++
	ws := h.stats.worker(m.WorkerID)
	ws.Acked++
	ws.ProcessTime += m.ProcessTime

	h.events.emitRegionAcked(AckEvent{
		Key:         m.Key,
		Worker:      m.WorkerID,
		ProcessTime: m.ProcessTime,
		Remaining:   remaining,
	})
	if chunkDone {
		h.events.emitChunkFinished(m.Key.Chunk())
	}
	h.checkAllFinished()
	h.checkIdle()
}

func handleModelInfo(h *Host, msg meshpipe.WorkerMessage) {
	m := msg.(meshpipe.ModelInfo)
	for state, model := range m.Entries {
		h.modelInfo[state] = model
	}
}

func handleHeightmap(h *Host, msg meshpipe.WorkerMessage) {
	m := msg.(meshpipe.Heightmap)
	if !h.tracker.Loaded(m.Key) {
		return
	}
	h.heightmaps[m.Key] = m.Heights
	h.events.emitHeightmapReady(m.Key, m.Heights)
}

func handleCustomModelResult(h *Host, msg meshpipe.WorkerMessage) {
	h.events.emitCustomModel(msg.(meshpipe.CustomModelResult))
}

func (h *Host) checkAllFinished() {
	if h.tracker.LoadedCount() == 0 || !h.tracker.AllFinished() {
		return
	}
	if !h.stats.loadStarted.IsZero() {
		h.stats.chunkLoadTime = h.now().Sub(h.stats.loadStarted)
		h.stats.loadStarted = time.Time{}
	}
	h.events.emitAllFinished()
}
