package host

import (
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

const maxWarnings = 32

type WorkerStats struct {
	Dispatched  uint64        `json:"dispatched"`
	Acked       uint64        `json:"acked"`
	Meshed      uint64        `json:"meshed"`
	ProcessTime time.Duration `json:"processTime"`
}

// Stats is a point-in-time snapshot for the observability overlay.
type Stats struct {
	Workers []WorkerStats `json:"workers"`

	LoadedChunks        int `json:"loadedChunks"`
	FinishedChunks      int `json:"finishedChunks"`
	QueuedChunks        int `json:"queuedChunks"`
	FinishedRegions     int `json:"finishedRegions"`
	OutstandingRegions  int `json:"outstandingRegions"`
	OutstandingRequests int `json:"outstandingRequests"`
	InboundQueue        int `json:"inboundQueue"`

	Dispatched  uint64 `json:"dispatched"`
	Acked       uint64 `json:"acked"`
	Geometries  uint64 `json:"geometries"`
	BlockCount  uint64 `json:"blockCount"`
	Flushes     uint64 `json:"flushes"`
	DrainYields uint64 `json:"drainYields"`

	// ChunkLoadTime is how long the most recent load burst took to finish meshing.
	ChunkLoadTime time.Duration `json:"chunkLoadTime"`

	Warnings []string `json:"warnings"`
}

// Progress is the fraction of loaded chunks that are fully meshed.
func (s Stats) Progress() float64 {
	if s.LoadedChunks == 0 {
		return 1
	}
	return float64(s.FinishedChunks) / float64(s.LoadedChunks)
}

// telemetry accumulates counters between snapshots.
type telemetry struct {
	workers    []WorkerStats
	dispatched uint64
	acked      uint64
	geometries uint64
	blockCount uint64
	warnings   []string

	loadStarted   time.Time
	chunkLoadTime time.Duration
}

func (t *telemetry) reset(workers int) {
	*t = telemetry{workers: make([]WorkerStats, workers)}
}

func (t *telemetry) worker(id int) *WorkerStats {
	if id < 0 || id >= len(t.workers) {
		return &WorkerStats{}
	}
	return &t.workers[id]
}

func (t *telemetry) warn(key meshpipe.RegionKey, warnings []string) {
	for _, w := range warnings {
		t.warnings = append(t.warnings, key.String()+": "+w)
	}
	if over := len(t.warnings) - maxWarnings; over > 0 {
		t.warnings = append([]string(nil), t.warnings[over:]...)
	}
}
