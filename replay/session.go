package replay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/b1naryth1ef/meshpipe"
	"github.com/b1naryth1ef/meshpipe/host"
)

var ErrReplayBusy = errors.New("replay session already running")

// Target is the live pipeline a session replays into.
type Target interface {
	// WhenIdle runs fn once nothing is loaded and no request is waiting for an ack.
	WhenIdle(ctx context.Context, fn func()) error
	// Watch reports every dirty mark that reaches a worker and every ack for it until unwatch
	// is called.
	Watch(ctx context.Context, onDirty, onAck func(meshpipe.RegionKey)) (unwatch func(context.Context) error, err error)
	// Apply performs one recorded call with batching bypassed.
	Apply(ctx context.Context, ev Event) error
}

// Session replays a log in lock step: a batch is only applied once every mark the previous
// batches caused has been acknowledged by a worker.
type Session struct {
	ID     string
	events []Event
	watch  *WatchSet
	log    *log.Logger

	running atomic.Bool
	applied atomic.Int64
}

func NewSession(l *Log, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		ID:     l.Session,
		events: l.Events,
		watch:  NewWatchSet(),
		log:    logger,
	}
}

// Applied is the number of events replayed so far.
func (s *Session) Applied() int {
	return int(s.applied.Load())
}

func (s *Session) Pending() int {
	return s.watch.Len()
}

func (s *Session) Run(ctx context.Context, t Target) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrReplayBusy
	}
	defer s.running.Store(false)

	// Marks caused by this session only: the target may outlive it.
	var active atomic.Bool
	active.Store(true)
	defer active.Store(false)

	unwatch, err := t.Watch(ctx,
		func(key meshpipe.RegionKey) {
			if active.Load() {
				s.watch.Add(key)
			}
		},
		func(key meshpipe.RegionKey) {
			s.watch.Done(key)
		},
	)
	if err != nil {
		return err
	}
	defer func() {
		// the run context may already be cancelled; still try to detach from a live target
		unwatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := unwatch(unwatchCtx); err != nil {
			s.logf("session %s: failed to unwatch target: %v", s.ID, err)
		}
	}()

	var once sync.Once
	idle := make(chan struct{})
	if err := t.WhenIdle(ctx, func() { once.Do(func() { close(idle) }) }); err != nil {
		return err
	}
	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}

	batches := Batches(s.events)
	s.logf("session %s: replaying %d events in %d batches", s.ID, len(s.events), len(batches))

	for i, batch := range batches {
		if err := s.watch.Wait(ctx); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		for _, ev := range batch {
			if err := t.Apply(ctx, ev); err != nil {
				return fmt.Errorf("event %d: %w", ev.Seq, err)
			}
			s.applied.Add(1)
		}
	}
	if err := s.watch.Wait(ctx); err != nil {
		return err
	}
	s.logf("session %s: done", s.ID)
	return nil
}

func (s *Session) logf(format string, args ...any) {
	s.log.Printf("[replay] "+format, args...)
}

// HostTarget replays into a running host. Column data is read from Source, since the log only
// records where a column was loaded.
type HostTarget struct {
	Host   *host.Host
	Source meshpipe.ChunkSource
}

func (t HostTarget) WhenIdle(ctx context.Context, fn func()) error {
	return t.Host.Do(ctx, func() {
		t.Host.WhenIdle(fn)
	})
}

func (t HostTarget) Watch(ctx context.Context, onDirty, onAck func(meshpipe.RegionKey)) (func(context.Context) error, error) {
	var offDirty, offAck func()
	err := t.Host.Do(ctx, func() {
		offDirty = t.Host.Events().OnDirty(func(ev host.DirtyEvent) {
			onDirty(ev.Key)
		})
		offAck = t.Host.Events().OnRegionAcked(func(ev host.AckEvent) {
			onAck(ev.Key)
		})
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return t.Host.Do(ctx, func() {
			offDirty()
			offAck()
		})
	}, nil
}

func (t HostTarget) Apply(ctx context.Context, ev Event) error {
	var data []byte
	if host.DispatchKind(ev.Kind) == host.DispatchColumn {
		if t.Source == nil {
			return fmt.Errorf("no chunk source for column %v", ev.Pos)
		}
		var err error
		data, err = t.Source.ReadChunk(meshpipe.ChunkKeyOf(ev.Pos))
		if err != nil {
			return err
		}
	}

	var err error
	doErr := t.Host.Do(ctx, func() {
		t.Host.SetForce(true)
		defer t.Host.SetForce(false)
		err = ApplyTo(t.Host, ev, data)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// ApplyTo performs one recorded dispatch on h. Must be called on the host goroutine.
func ApplyTo(h *host.Host, ev Event, data []byte) error {
	switch host.DispatchKind(ev.Kind) {
	case host.DispatchColumn:
		return h.AddColumn(ev.Pos.X, ev.Pos.Z, data, ev.LightUpdate)
	case host.DispatchUnload:
		h.UnloadChunk(ev.Pos.X, ev.Pos.Z)
	case host.DispatchEdit:
		h.SetBlockState(ev.Pos, ev.State, ev.AO)
	case host.DispatchDirty:
		h.MarkDirty(ev.Pos, ev.Value, ev.Stable)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}
