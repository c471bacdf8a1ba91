package host

import (
	"context"
	"sync"

	"github.com/b1naryth1ef/meshpipe"
	"github.com/b1naryth1ef/meshpipe/mesher"
)

// Pool is the set of meshing workers the host dispatches to. Every worker reports into the
// single shared inbox.
type Pool interface {
	Size() int
	Post(worker int, batch []meshpipe.HostMessage)
	Inbox() *meshpipe.Mailbox[meshpipe.WorkerMessage]
	Stop()
}

// PoolFactory builds a pool of exactly size workers.
type PoolFactory func(size int) Pool

// GoroutinePool runs each worker on its own goroutine.
type GoroutinePool struct {
	workers []*mesher.Worker
	inbox   *meshpipe.Mailbox[meshpipe.WorkerMessage]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGoroutinePool(size int, opts mesher.WorkerOpts) *GoroutinePool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &GoroutinePool{
		inbox:  meshpipe.NewMailbox[meshpipe.WorkerMessage](),
		cancel: cancel,
	}

	for i := 0; i < size; i++ {
		w := mesher.NewWorker(i, p.inbox, opts)
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
	return p
}

func GoroutinePoolFactory(opts mesher.WorkerOpts) PoolFactory {
	return func(size int) Pool {
		return NewGoroutinePool(size, opts)
	}
}

func (p *GoroutinePool) Size() int {
	return len(p.workers)
}

func (p *GoroutinePool) Post(worker int, batch []meshpipe.HostMessage) {
	p.workers[worker].Post(batch)
}

func (p *GoroutinePool) Inbox() *meshpipe.Mailbox[meshpipe.WorkerMessage] {
	return p.inbox
}

// Stop cancels every worker and waits for them to exit. Anything still in the inbox is dropped.
func (p *GoroutinePool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.inbox.Close()
}

// WorkerIndex hashes a position onto workers 1..workerCount-1. Worker 0 is kept for
// ordering-sensitive work and is only chosen here when it is the only worker.
func WorkerIndex(pos meshpipe.BlockPos, workerCount int) int {
	if workerCount < 2 {
		return 0
	}
	sum := meshpipe.FloorDiv(pos.X, meshpipe.RegionSize) +
		meshpipe.FloorDiv(pos.Y, meshpipe.RegionSize) +
		meshpipe.FloorDiv(pos.Z, meshpipe.RegionSize)
	return meshpipe.Mod(sum, workerCount-1) + 1
}
