package replay

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/b1naryth1ef/meshpipe"
	"github.com/b1naryth1ef/meshpipe/host"
)

var discard = log.New(io.Discard, "", 0)

func TestRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "session.jsonl.zst")
	world := meshpipe.WorldConfig{MinY: -64, Height: 384, Version: "1.20.4"}

	r, err := NewRecorder(path, world, 4)
	if err != nil {
		t.Fatal(err)
	}
	r.RecordDispatch(host.Dispatch{Kind: host.DispatchColumn, Pos: meshpipe.BlockPos{X: 16, Z: -32}})
	r.RecordDispatch(host.Dispatch{Kind: host.DispatchDirty, Pos: meshpipe.BlockPos{X: 1, Y: 2, Z: 3}, Value: true, Stable: true})
	r.RecordAck(meshpipe.RegionKey{X: 0, Y: 0, Z: 0}, 2)
	r.RecordAck(meshpipe.RegionKey{X: 0, Y: 16, Z: 0}, 1)
	r.RecordDispatch(host.Dispatch{Kind: host.DispatchEdit, Pos: meshpipe.BlockPos{X: 4, Y: 5, Z: 6}, State: "minecraft:stone", AO: true})
	r.RecordDispatch(host.Dispatch{Kind: host.DispatchUnload, Pos: meshpipe.BlockPos{X: 16, Z: -32}})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Err() != nil {
		t.Fatal(r.Err())
	}

	l, err := ReadLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if l.Session != r.Session() || l.Workers != 4 {
		t.Fatalf("header = %q/%d", l.Session, l.Workers)
	}
	if diff := cmp.Diff(world, l.World); diff != "" {
		t.Fatalf("world config (-want +got):\n%s", diff)
	}

	type summary struct {
		Seq   uint64
		Batch uint64
		Kind  string
		Key   string
	}
	var got []summary
	for _, ev := range l.Events {
		got = append(got, summary{Seq: ev.Seq, Batch: ev.Batch, Kind: ev.Kind, Key: ev.Key})
	}
	want := []summary{
		{Seq: 2, Batch: 0, Kind: "column"},
		{Seq: 3, Batch: 0, Kind: "dirty"},
		{Seq: 4, Batch: 0, Kind: KindAck, Key: meshpipe.RegionKey{}.String()},
		{Seq: 5, Batch: 0, Kind: KindAck, Key: meshpipe.RegionKey{Y: 16}.String()},
		{Seq: 6, Batch: 1, Kind: "edit"},
		{Seq: 7, Batch: 1, Kind: "unload"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}

	edit := l.Events[4]
	if edit.State != "minecraft:stone" || !edit.AO || edit.Pos != (meshpipe.BlockPos{X: 4, Y: 5, Z: 6}) {
		t.Fatalf("edit event = %+v", edit)
	}

	batches := Batches(l.Events)
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 2 {
		t.Fatalf("batches = %v", batches)
	}
}

func TestRecorderAttach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attach.jsonl.zst")
	r, err := NewRecorder(path, meshpipe.WorldConfig{Height: 256}, 1)
	if err != nil {
		t.Fatal(err)
	}

	h := host.New(host.Options{World: meshpipe.WorldConfig{Height: 256}, Assets: &meshpipe.Assets{}, Logger: discard})
	detach := r.Attach(h)
	h.SetBlockState(meshpipe.BlockPos{X: 1}, "minecraft:dirt", false)
	h.MarkDirty(meshpipe.BlockPos{X: 2}, true, false)
	detach()
	if n := h.Events().Subscribers(); n != 0 {
		t.Fatalf("%d subscribers left after detach", n)
	}
	h.MarkDirty(meshpipe.BlockPos{X: 3}, true, false)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	l, err := ReadLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Events) != 2 || l.Events[0].Kind != "edit" || l.Events[1].Kind != "dirty" {
		t.Fatalf("events = %+v", l.Events)
	}
}

func TestBatches(t *testing.T) {
	events := []Event{
		{Seq: 1, Batch: 0, Kind: "column"},
		{Seq: 2, Batch: 0, Kind: KindAck},
		{Seq: 3, Batch: 1, Kind: "dirty"},
		{Seq: 4, Batch: 1, Kind: "dirty"},
		{Seq: 5, Batch: 1, Kind: KindAck},
		{Seq: 6, Batch: 1, Kind: KindAck},
		{Seq: 7, Batch: 3, Kind: "unload"},
	}
	var got [][]uint64
	for _, batch := range Batches(events) {
		var seqs []uint64
		for _, ev := range batch {
			seqs = append(seqs, ev.Seq)
		}
		got = append(got, seqs)
	}
	if diff := cmp.Diff([][]uint64{{1}, {3, 4}, {7}}, got); diff != "" {
		t.Fatalf("batches (-want +got):\n%s", diff)
	}
	if Batches(nil) != nil {
		t.Fatalf("empty log produced batches")
	}
}

func TestApplyToUnknownKind(t *testing.T) {
	h := host.New(host.Options{World: meshpipe.WorldConfig{Height: 256}, Assets: &meshpipe.Assets{}, Logger: discard})
	if err := ApplyTo(h, Event{Kind: "bogus"}, nil); err == nil {
		t.Fatalf("unknown kind accepted")
	}
	if err := ApplyTo(h, Event{Kind: string(host.DispatchColumn)}, nil); err != host.ErrNoWorkers {
		t.Fatalf("column without workers: %v", err)
	}
}
