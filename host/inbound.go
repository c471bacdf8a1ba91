package host

import (
	"time"

	"github.com/b1naryth1ef/meshpipe"
)

// Inbound is the single FIFO every worker reports into. Draining is time sliced against the
// render loop: with rendering active and smoothing on, a drain that overruns its budget parks
// itself until the next frame and resumes there.
type Inbound struct {
	queue []meshpipe.WorkerMessage

	budget    time.Duration
	smoothing bool
	frames    FrameSource
	now       func() time.Time
	handle    func(meshpipe.WorkerMessage)

	parked bool
	yields uint64
}

func NewInbound(budget time.Duration, smoothing bool, frames FrameSource, now func() time.Time, handle func(meshpipe.WorkerMessage)) *Inbound {
	return &Inbound{
		budget:    budget,
		smoothing: smoothing,
		frames:    frames,
		now:       now,
		handle:    handle,
	}
}

// Push appends messages in arrival order. Single messages and batches go through the same path.
func (in *Inbound) Push(msgs ...meshpipe.WorkerMessage) {
	in.queue = append(in.queue, msgs...)
}

// Drain processes queued messages unless a drain is already parked waiting for a frame.
func (in *Inbound) Drain() {
	if in.parked {
		return
	}
	in.drain(false)
}

func (in *Inbound) drain(resumed bool) {
	if len(in.queue) == 0 {
		return
	}

	start := in.now()
	limited := in.smoothing && in.frames.RenderActive()

	// the renderer is already behind: give it a frame before adding work
	if limited && !resumed && start.Sub(in.frames.LastRender()) > in.budget {
		in.park()
		return
	}

	for len(in.queue) > 0 {
		if limited && in.now().Sub(start) > in.budget {
			in.park()
			return
		}
		msg := in.queue[0]
		in.queue[0] = nil
		in.queue = in.queue[1:]
		in.handle(msg)
	}
	in.queue = nil
}

func (in *Inbound) park() {
	in.parked = true
	in.yields++
	in.frames.OnNextFrame(func() {
		in.parked = false
		in.drain(true)
	})
}

func (in *Inbound) Len() int {
	return len(in.queue)
}

func (in *Inbound) Parked() bool {
	return in.parked
}

// Yields counts how many times a drain handed control back to the renderer.
func (in *Inbound) Yields() uint64 {
	return in.yields
}

// Clear drops everything queued. A parked drain resumes into an empty queue.
func (in *Inbound) Clear() {
	in.queue = nil
}
