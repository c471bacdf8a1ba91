package host

import "time"

// FrameSource is the render loop as the inbound processor sees it.
type FrameSource interface {
	RenderActive() bool
	LastRender() time.Time
	// OnNextFrame runs fn once, right after the next frame is painted.
	OnNextFrame(fn func())
}

// Frames is a FrameSource driven by whoever paints: the host event loop in production, the
// test directly otherwise.
type Frames struct {
	active bool
	last   time.Time
	next   []func()
}

func NewFrames(active bool) *Frames {
	return &Frames{active: active}
}

func (f *Frames) SetActive(active bool) {
	f.active = active
}

func (f *Frames) RenderActive() bool {
	return f.active
}

func (f *Frames) LastRender() time.Time {
	return f.last
}

func (f *Frames) OnNextFrame(fn func()) {
	f.next = append(f.next, fn)
}

// Frame records a paint at now and runs everything waiting for it.
func (f *Frames) Frame(now time.Time) {
	f.last = now
	waiting := f.next
	f.next = nil
	for _, fn := range waiting {
		fn()
	}
}

// Waiting is the number of callbacks parked until the next frame.
func (f *Frames) Waiting() int {
	return len(f.next)
}
