package meshpipe

// Transport delivers one coalesced batch to a destination.
type Transport[T any] func(dest int, batch []T)

// Batcher coalesces messages per destination so each destination sees at most one transport
// call per scheduling tick. When Burst is positive a queue reaching Burst messages is flushed
// immediately instead of waiting for the tick.
type Batcher[T any] struct {
	sched     Scheduler
	send      Transport[T]
	burst     int
	queues    map[int][]T
	scheduled map[int]bool

	flushes uint64
}

func NewBatcher[T any](sched Scheduler, send Transport[T], burst int) *Batcher[T] {
	return &Batcher[T]{
		sched:     sched,
		send:      send,
		burst:     burst,
		queues:    make(map[int][]T),
		scheduled: make(map[int]bool),
	}
}

// Enqueue adds msg to the destination's queue and arms a flush for the next tick.
func (b *Batcher[T]) Enqueue(dest int, msg T) {
	b.queues[dest] = append(b.queues[dest], msg)

	if b.burst > 0 && len(b.queues[dest]) >= b.burst {
		b.Flush(dest)
		return
	}

	if b.scheduled[dest] {
		return
	}
	b.scheduled[dest] = true
	b.sched.Schedule(func() {
		b.scheduled[dest] = false
		b.Flush(dest)
	})
}

// SendNow bypasses the queue. Anything already queued for dest goes out first so per
// destination order holds.
func (b *Batcher[T]) SendNow(dest int, msg T) {
	b.queues[dest] = append(b.queues[dest], msg)
	b.Flush(dest)
}

// Flush sends the destination's queue as one batch and clears it.
func (b *Batcher[T]) Flush(dest int) {
	queue := b.queues[dest]
	if len(queue) == 0 {
		return
	}
	delete(b.queues, dest)
	b.flushes++
	b.send(dest, queue)
}

// FlushAll flushes every destination.
func (b *Batcher[T]) FlushAll() {
	for dest := range b.queues {
		b.Flush(dest)
	}
}

// Drop discards queued messages without sending them.
func (b *Batcher[T]) Drop() {
	b.queues = make(map[int][]T)
}

func (b *Batcher[T]) Pending(dest int) int {
	return len(b.queues[dest])
}

// Flushes is the number of transport calls made so far.
func (b *Batcher[T]) Flushes() uint64 {
	return b.flushes
}
