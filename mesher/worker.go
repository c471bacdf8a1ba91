package mesher

import (
	"context"
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

// Worker runs a Context on its own goroutine. The host reaches it only through Post and hears
// back only through the outbox mailbox.
type Worker struct {
	ctx     *Context
	inbox   *meshpipe.Mailbox[meshpipe.HostMessage]
	sched   *meshpipe.TickScheduler
	batcher *meshpipe.Batcher[meshpipe.WorkerMessage]
	period  time.Duration
}

type WorkerOpts struct {
	Options

	Period time.Duration
	// Burst flushes the outbound queue early once it holds this many messages.
	Burst int
}

func NewWorker(id int, outbox *meshpipe.Mailbox[meshpipe.WorkerMessage], opts WorkerOpts) *Worker {
	if opts.Period <= 0 {
		opts.Period = 50 * time.Millisecond
	}
	if opts.Burst <= 0 {
		opts.Burst = 100
	}

	w := &Worker{
		inbox:  meshpipe.NewMailbox[meshpipe.HostMessage](),
		sched:  meshpipe.NewTickScheduler(),
		period: opts.Period,
	}
	w.batcher = meshpipe.NewBatcher(w.sched, func(_ int, batch []meshpipe.WorkerMessage) {
		outbox.Post(batch)
	}, opts.Burst)
	w.ctx = NewContext(id, func(msg meshpipe.WorkerMessage) {
		w.batcher.Enqueue(0, msg)
	}, opts.Options)
	return w
}

func (w *Worker) ID() int {
	return w.ctx.ID
}

// Post hands a batch of messages to the worker. It never blocks.
func (w *Worker) Post(batch []meshpipe.HostMessage) {
	w.inbox.Post(batch)
}

// Run processes messages and ticks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()
	defer w.inbox.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.inbox.Ready():
			for _, batch := range w.inbox.Take() {
				for _, msg := range batch {
					w.ctx.Handle(msg)
				}
			}
		case <-ticker.C:
			w.ctx.Tick()
		}
		w.sched.RunPending()
	}
}
