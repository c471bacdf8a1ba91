package host

import (
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

// DirtyEvent is emitted for every region mark that reached a worker.
type DirtyEvent struct {
	Key    meshpipe.RegionKey
	Pos    meshpipe.BlockPos
	Worker int
	Value  bool
}

// AckEvent is emitted for every sectionFinished the host consumed.
type AckEvent struct {
	Key         meshpipe.RegionKey
	Worker      int
	ProcessTime time.Duration
	Remaining   int
}

type DispatchKind string

const (
	DispatchColumn DispatchKind = "column"
	DispatchUnload DispatchKind = "unload"
	DispatchEdit   DispatchKind = "edit"
	DispatchDirty  DispatchKind = "dirty"
)

// Dispatch describes one top level call into the host, before neighbour propagation. It is
// what the replay recorder captures.
type Dispatch struct {
	Kind        DispatchKind
	Pos         meshpipe.BlockPos
	State       string
	Value       bool
	Stable      bool
	LightUpdate bool
	AO          bool
}

// subscribers is one event's callback list. Removal copies the list, so a callback may
// unsubscribe itself while the event is being emitted.
type subscribers[F any] struct {
	next uint64
	list []subscriber[F]
}

type subscriber[F any] struct {
	id uint64
	fn F
}

func (s *subscribers[F]) add(fn F) func() {
	s.next++
	id := s.next
	s.list = append(s.list, subscriber[F]{id: id, fn: fn})
	return func() {
		for i, sub := range s.list {
			if sub.id != id {
				continue
			}
			list := make([]subscriber[F], 0, len(s.list)-1)
			list = append(list, s.list[:i]...)
			s.list = append(list, s.list[i+1:]...)
			return
		}
	}
}

func (s *subscribers[F]) len() int {
	return len(s.list)
}

// Events fans host notifications out to subscribers. Callbacks run on the host goroutine. Every
// On method returns a func that removes the callback again; it must be called on the host
// goroutine too.
type Events struct {
	dirty          subscribers[func(DirtyEvent)]
	regionAcked    subscribers[func(AckEvent)]
	chunkFinished  subscribers[func(meshpipe.ChunkKey)]
	heightmapReady subscribers[func(meshpipe.ChunkKey, [meshpipe.RegionSize * meshpipe.RegionSize]byte)]
	customModel    subscribers[func(meshpipe.CustomModelResult)]
	allFinished    subscribers[func()]
	dispatch       subscribers[func(Dispatch)]
}

func (e *Events) OnDirty(fn func(DirtyEvent)) func() {
	return e.dirty.add(fn)
}

func (e *Events) OnRegionAcked(fn func(AckEvent)) func() {
	return e.regionAcked.add(fn)
}

func (e *Events) OnChunkFinished(fn func(meshpipe.ChunkKey)) func() {
	return e.chunkFinished.add(fn)
}

func (e *Events) OnHeightmapReady(fn func(meshpipe.ChunkKey, [meshpipe.RegionSize * meshpipe.RegionSize]byte)) func() {
	return e.heightmapReady.add(fn)
}

func (e *Events) OnCustomModel(fn func(meshpipe.CustomModelResult)) func() {
	return e.customModel.add(fn)
}

func (e *Events) OnAllFinished(fn func()) func() {
	return e.allFinished.add(fn)
}

func (e *Events) OnDispatch(fn func(Dispatch)) func() {
	return e.dispatch.add(fn)
}

// Subscribers is the total number of registered callbacks.
func (e *Events) Subscribers() int {
	return e.dirty.len() + e.regionAcked.len() + e.chunkFinished.len() + e.heightmapReady.len() +
		e.customModel.len() + e.allFinished.len() + e.dispatch.len()
}

func (e *Events) emitDirty(ev DirtyEvent) {
	for _, sub := range e.dirty.list {
		sub.fn(ev)
	}
}

func (e *Events) emitRegionAcked(ev AckEvent) {
	for _, sub := range e.regionAcked.list {
		sub.fn(ev)
	}
}

func (e *Events) emitChunkFinished(key meshpipe.ChunkKey) {
	for _, sub := range e.chunkFinished.list {
		sub.fn(key)
	}
}

func (e *Events) emitHeightmapReady(key meshpipe.ChunkKey, heights [meshpipe.RegionSize * meshpipe.RegionSize]byte) {
	for _, sub := range e.heightmapReady.list {
		sub.fn(key, heights)
	}
}

func (e *Events) emitCustomModel(res meshpipe.CustomModelResult) {
	for _, sub := range e.customModel.list {
		sub.fn(res)
	}
}

func (e *Events) emitAllFinished() {
	for _, sub := range e.allFinished.list {
		sub.fn()
	}
}

func (e *Events) emitDispatch(d Dispatch) {
	for _, sub := range e.dispatch.list {
		sub.fn(d)
	}
}
