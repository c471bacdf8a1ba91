package overlay

import (
	"time"

	"github.com/b1naryth1ef/meshpipe/host"
)

// Snapshot is what the overlay page receives on every push.
type Snapshot struct {
	Time     time.Time    `json:"time"`
	Progress float64      `json:"progress"`
	Workers  []WorkerData `json:"workers"`
	Stats    host.Stats   `json:"stats"`
}

type WorkerData struct {
	ID           int     `json:"id"`
	Color        string  `json:"color"`
	Dispatched   uint64  `json:"dispatched"`
	Acked        uint64  `json:"acked"`
	Meshed       uint64  `json:"meshed"`
	AvgProcessMs float64 `json:"avgProcessMs"`
}

// NewSnapshot derives the per-worker view from a stats snapshot.
func NewSnapshot(stats host.Stats, colors []string, now time.Time) Snapshot {
	snap := Snapshot{
		Time:     now,
		Progress: stats.Progress(),
		Stats:    stats,
	}
	for i, ws := range stats.Workers {
		wd := WorkerData{
			ID:         i,
			Dispatched: ws.Dispatched,
			Acked:      ws.Acked,
			Meshed:     ws.Meshed,
		}
		if i < len(colors) {
			wd.Color = colors[i]
		}
		if ws.Acked > 0 {
			wd.AvgProcessMs = float64(ws.ProcessTime.Microseconds()) / 1000 / float64(ws.Acked)
		}
		snap.Workers = append(snap.Workers, wd)
	}
	return snap
}
