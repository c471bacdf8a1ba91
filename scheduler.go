package meshpipe

// Scheduler defers work to the next tick of whatever loop owns it.
type Scheduler interface {
	Schedule(fn func())
}

// TickScheduler queues callbacks until the owning loop calls RunPending. Both the host event
// loop and the worker loop drive one after every handled event, and tests drive it by hand.
type TickScheduler struct {
	pending []func()
}

func NewTickScheduler() *TickScheduler {
	return &TickScheduler{}
}

func (s *TickScheduler) Schedule(fn func()) {
	s.pending = append(s.pending, fn)
}

// RunPending runs everything scheduled so far. Callbacks scheduled while running wait for the
// next call.
func (s *TickScheduler) RunPending() int {
	if len(s.pending) == 0 {
		return 0
	}
	batch := s.pending
	s.pending = nil
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

func (s *TickScheduler) Len() int {
	return len(s.pending)
}

// ImmediateScheduler runs callbacks inline. Every enqueue becomes its own flush.
type ImmediateScheduler struct{}

func (ImmediateScheduler) Schedule(fn func()) {
	fn()
}
