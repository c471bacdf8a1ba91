package host

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/b1naryth1ef/meshpipe"
	"github.com/b1naryth1ef/meshpipe/mesher"
)

var testWorld = meshpipe.WorldConfig{MinY: 0, Height: 256}

var discard = log.New(io.Discard, "", 0)

func testDecode(data []byte) (*meshpipe.Column, error) {
	return meshpipe.NewColumn(0, 0, testWorld.MinY, testWorld.Height), nil
}

func testMesherOptions() mesher.Options {
	return mesher.Options{
		NewMesher: func(assets *meshpipe.Assets) meshpipe.Mesher {
			return meshpipe.MesherFunc(func(key meshpipe.RegionKey, world meshpipe.BlockSource, config meshpipe.MesherConfig) *meshpipe.Geometry {
				return &meshpipe.Geometry{BlockCount: 1}
			})
		},
		Decode: testDecode,
		Logger: discard,
	}
}

// syncPool runs worker contexts inline: Post handles messages immediately and tick runs every
// worker's tick. Worker output lands in the shared inbox exactly as with goroutine workers.
type syncPool struct {
	contexts []*mesher.Context
	inbox    *meshpipe.Mailbox[meshpipe.WorkerMessage]
	stopped  bool
}

func newSyncPool(size int) *syncPool {
	p := &syncPool{inbox: meshpipe.NewMailbox[meshpipe.WorkerMessage]()}
	for i := 0; i < size; i++ {
		p.contexts = append(p.contexts, mesher.NewContext(i, func(msg meshpipe.WorkerMessage) {
			p.inbox.Post([]meshpipe.WorkerMessage{msg})
		}, testMesherOptions()))
	}
	return p
}

func (p *syncPool) Size() int {
	return len(p.contexts)
}

func (p *syncPool) Post(worker int, batch []meshpipe.HostMessage) {
	if p.stopped {
		return
	}
	for _, msg := range batch {
		p.contexts[worker].Handle(msg)
	}
}

func (p *syncPool) Inbox() *meshpipe.Mailbox[meshpipe.WorkerMessage] {
	return p.inbox
}

func (p *syncPool) Stop() {
	p.stopped = true
	p.inbox.Close()
}

func (p *syncPool) tick() {
	for _, c := range p.contexts {
		c.Tick()
	}
}

type testEnv struct {
	t     *testing.T
	h     *Host
	pools []*syncPool
	dirty []DirtyEvent
	done  int
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{t: t}
	opts := Options{
		World:                testWorld,
		ViewDistance:         8,
		NeighborChunkUpdates: false,
		DrainBudget:          30 * time.Millisecond,
		Debounce:             time.Hour,
		Logger:               discard,
		Assets:               &meshpipe.Assets{},
		Pools: func(size int) Pool {
			p := newSyncPool(size)
			env.pools = append(env.pools, p)
			return p
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	env.h = New(opts)
	env.h.Events().OnDirty(func(ev DirtyEvent) {
		env.dirty = append(env.dirty, ev)
	})
	env.h.Events().OnAllFinished(func() {
		env.done++
	})
	return env
}

func (e *testEnv) pool() *syncPool {
	return e.pools[len(e.pools)-1]
}

// settle runs flush, tick and drain rounds until the workers have answered everything.
func (e *testEnv) settle() {
	for i := 0; i < 8; i++ {
		e.h.RunPending()
		e.pool().tick()
		e.h.Pump()
	}
	e.h.RunPending()
}

func (e *testEnv) takeDirty() []DirtyEvent {
	out := e.dirty
	e.dirty = nil
	return out
}
