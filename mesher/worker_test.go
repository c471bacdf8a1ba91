package mesher

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

func TestWorkerRoundTrip(t *testing.T) {
	outbox := meshpipe.NewMailbox[meshpipe.WorkerMessage]()
	w := NewWorker(2, outbox, WorkerOpts{
		Options: Options{
			Decode: func(data []byte) (*meshpipe.Column, error) {
				return meshpipe.NewColumn(0, 0, 0, 64), nil
			},
			Logger: log.New(io.Discard, "", 0),
		},
		Period: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	w.Post([]meshpipe.HostMessage{
		meshpipe.SetWorldConfig{Config: meshpipe.WorldConfig{MinY: 0, Height: 64}},
		meshpipe.SetMeshingAssets{Assets: meshpipe.NewAssets("")},
		meshpipe.LoadChunk{X: 0, Z: 0},
		meshpipe.MarkDirty{Pos: meshpipe.BlockPos{X: 1, Y: 17, Z: 1}, Value: true},
	})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-outbox.Ready():
		case <-deadline:
			t.Fatalf("no ack from worker")
		}
		for _, batch := range outbox.Take() {
			for _, msg := range batch {
				if m, ok := msg.(meshpipe.SectionFinished); ok {
					if m.WorkerID != 2 || m.Key != (meshpipe.RegionKey{X: 0, Y: 16, Z: 0}) {
						t.Fatalf("unexpected ack %+v", m)
					}
					return
				}
			}
		}
	}
}
