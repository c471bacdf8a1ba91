// Package replay records what the host dispatched and what the workers acknowledged, and plays
// such a log back against a live pool in lock step with real worker throughput.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/b1naryth1ef/meshpipe"
	"github.com/b1naryth1ef/meshpipe/host"
)

const (
	KindSession = "session"
	KindAck     = "ack"
)

// Event is one line of a replay log. Dispatch events use the host.DispatchKind names.
type Event struct {
	Seq   uint64 `json:"seq"`
	Batch uint64 `json:"batch"`
	AtMs  int64  `json:"at_ms"`
	Kind  string `json:"kind"`

	Pos         meshpipe.BlockPos `json:"pos"`
	State       string            `json:"state,omitempty"`
	Value       bool              `json:"value,omitempty"`
	Stable      bool              `json:"stable,omitempty"`
	LightUpdate bool              `json:"light_update,omitempty"`
	AO          bool              `json:"ao,omitempty"`

	Key    string `json:"key,omitempty"`
	Worker int    `json:"worker,omitempty"`

	Session string               `json:"session,omitempty"`
	World   *meshpipe.WorldConfig `json:"world,omitempty"`
	Workers int                  `json:"workers,omitempty"`
}

func (e Event) IsDispatch() bool {
	return e.Kind != KindSession && e.Kind != KindAck
}

// Recorder appends host dispatches and worker acks to a zstd compressed JSONL file. A new batch
// starts with the first dispatch after any ack, so a batch is everything the host sent before
// it heard back from a worker.
type Recorder struct {
	mu sync.Mutex

	path  string
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	start time.Time
	now   func() time.Time

	seq      uint64
	batch    uint64
	sawAck   bool
	session  string
	writeErr error
}

func NewRecorder(path string, world meshpipe.WorldConfig, workers int) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r := &Recorder{
		path:    path,
		f:       f,
		enc:     enc,
		w:       bufio.NewWriterSize(enc, 128*1024),
		now:     time.Now,
		session: uuid.NewString(),
	}
	r.start = r.now()
	if err := r.write(Event{Kind: KindSession, Session: r.session, World: &world, Workers: workers}); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Session is the id written into the log header.
func (r *Recorder) Session() string {
	return r.session
}

// Attach subscribes the recorder to a host and returns the func that detaches it. Both must be
// called on the host goroutine.
func (r *Recorder) Attach(h *host.Host) func() {
	offDispatch := h.Events().OnDispatch(func(d host.Dispatch) {
		r.RecordDispatch(d)
	})
	offAck := h.Events().OnRegionAcked(func(ev host.AckEvent) {
		r.RecordAck(ev.Key, ev.Worker)
	})
	return func() {
		offDispatch()
		offAck()
	}
}

func (r *Recorder) RecordDispatch(d host.Dispatch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sawAck {
		r.batch++
		r.sawAck = false
	}
	r.writeLocked(Event{
		Kind:        string(d.Kind),
		Pos:         d.Pos,
		State:       d.State,
		Value:       d.Value,
		Stable:      d.Stable,
		LightUpdate: d.LightUpdate,
		AO:          d.AO,
	})
}

func (r *Recorder) RecordAck(key meshpipe.RegionKey, worker int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sawAck = true
	r.writeLocked(Event{Kind: KindAck, Key: key.String(), Worker: worker})
}

// Err returns the first write error. Recording never interrupts the pipeline.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErr
}

func (r *Recorder) write(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(ev)
	return r.writeErr
}

func (r *Recorder) writeLocked(ev Event) {
	if r.w == nil || r.writeErr != nil {
		return
	}
	r.seq++
	ev.Seq = r.seq
	ev.Batch = r.batch
	ev.AtMs = r.now().Sub(r.start).Milliseconds()

	b, err := json.Marshal(ev)
	if err != nil {
		r.writeErr = err
		return
	}
	if _, err := r.w.Write(b); err != nil {
		r.writeErr = err
		return
	}
	if err := r.w.WriteByte('\n'); err != nil {
		r.writeErr = err
	}
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.w != nil {
		err = r.w.Flush()
		r.w = nil
	}
	if r.enc != nil {
		if cerr := r.enc.Close(); err == nil {
			err = cerr
		}
		r.enc = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
	}
	return err
}

// Log is a parsed replay log.
type Log struct {
	Session string
	World   meshpipe.WorldConfig
	Workers int
	Events  []Event
}

func ReadLog(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	out := &Log{}
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if ev.Kind == KindSession {
			out.Session = ev.Session
			out.Workers = ev.Workers
			if ev.World != nil {
				out.World = *ev.World
			}
			continue
		}
		out.Events = append(out.Events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Batches groups the dispatch events of a log by batch number, dropping acks.
func Batches(events []Event) [][]Event {
	var out [][]Event
	var cur []Event
	var curBatch uint64
	for _, ev := range events {
		if !ev.IsDispatch() {
			continue
		}
		if len(cur) > 0 && ev.Batch != curBatch {
			out = append(out, cur)
			cur = nil
		}
		curBatch = ev.Batch
		cur = append(cur, ev)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
