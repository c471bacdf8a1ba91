// Package mesher implements the worker side of the meshing pipeline: a mirror of the streamed
// world, a multiset of dirty regions and the periodic tick that turns them into geometry.
package mesher

import (
	"log"
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

type State int

const (
	Uninitialized State = iota
	Configured
	Ready
	Active
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Ready:
		return "ready"
	case Active:
		return "active"
	}
	return "unknown"
}

// Outbox receives every message a worker emits, in order.
type Outbox func(msg meshpipe.WorkerMessage)

type Options struct {
	// NewMesher builds the mesher once assets arrive. Defaults to the face mesher.
	NewMesher func(assets *meshpipe.Assets) meshpipe.Mesher
	// Decode turns loadChunk payloads into columns. Defaults to meshpipe.DecodeColumn.
	Decode func(data []byte) (*meshpipe.Column, error)
	Logger *log.Logger
	Now    func() time.Time
}

// Context is all state owned by one worker. Every handler and the tick receive it explicitly,
// so the worker logic runs the same inside a goroutine and inside a test.
type Context struct {
	ID    int
	State State

	Config meshpipe.WorldConfig
	World  *meshpipe.World
	Assets *meshpipe.Assets
	Mesher meshpipe.Mesher

	mesherConfig meshpipe.MesherConfig

	// dirty counts stacked marks per region; order keeps ticks deterministic.
	dirty map[meshpipe.RegionKey]int
	order []meshpipe.RegionKey

	knownModels map[string]string
	newModels   map[string]string

	out       Outbox
	newMesher func(assets *meshpipe.Assets) meshpipe.Mesher
	decode    func(data []byte) (*meshpipe.Column, error)
	log       *log.Logger
	now       func() time.Time
}

func NewContext(id int, out Outbox, opts Options) *Context {
	c := &Context{
		ID:          id,
		dirty:       make(map[meshpipe.RegionKey]int),
		knownModels: make(map[string]string),
		newModels:   make(map[string]string),
		out:         out,
		newMesher:   opts.NewMesher,
		decode:      opts.Decode,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if c.newMesher == nil {
		c.newMesher = func(assets *meshpipe.Assets) meshpipe.Mesher {
			return meshpipe.NewFaceMesher(assets)
		}
	}
	if c.decode == nil {
		c.decode = meshpipe.DecodeColumn
	}
	if c.log == nil {
		c.log = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Handle dispatches one host message through the handler table.
func (c *Context) Handle(msg meshpipe.HostMessage) {
	handlers[msg.HostKind()](c, msg)
}

// Pending returns the stacked mark count for a region.
func (c *Context) Pending(key meshpipe.RegionKey) int {
	return c.dirty[key]
}

// PendingRegions is the number of distinct dirty regions.
func (c *Context) PendingRegions() int {
	return len(c.dirty)
}

func (c *Context) markDirty(key meshpipe.RegionKey) {
	if _, ok := c.dirty[key]; !ok {
		c.order = append(c.order, key)
	}
	c.dirty[key]++
}

// clearDirty drops a region's stacked marks and returns how many there were.
func (c *Context) clearDirty(key meshpipe.RegionKey) int {
	n := c.dirty[key]
	delete(c.dirty, key)
	return n
}

func (c *Context) ack(key meshpipe.RegionKey, processTime time.Duration) {
	c.out(meshpipe.SectionFinished{Key: key, WorkerID: c.ID, ProcessTime: processTime})
}

// softCleanup swaps in a fresh mirror instead of freeing columns one by one.
func (c *Context) softCleanup() {
	c.World = meshpipe.NewWorld(c.Config)
	c.logf("mirror empty, rebuilt world")
}

func (c *Context) logf(format string, args ...any) {
	c.log.Printf("[worker %d] "+format, append([]any{c.ID}, args...)...)
}
