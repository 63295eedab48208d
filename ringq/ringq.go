package ringq

import "errors"

/*
	Queue is the fixed-capacity FIFO ring that hands records between the
	script side and the engine loop -- one instance carries completion events
	inward, another carries outbound queries toward dispatch. Records live in
	one preallocated buffer: Create reserves the next record in place and
	returns a handle for the caller to fill, Pop yields records in creation
	order, and UndoCreate rolls back the newest reservation when dispatch
	fails half way. All wraparound arithmetic lives here.

	A full queue is backpressure, not a fault: Create returns ErrQueueFull and
	the caller degrades (rejects or defers the new request). Misusing
	UndoCreate on anything but the newest un-popped record is a programming
	error and panics.
*/

// DefaultCap is the capacity production contexts use for both rings.
const DefaultCap = 2_000_000

var ErrQueueFull = errors.New("ringq: queue full")

type Queue[T any] struct {
	buf   []T
	begin int
	end   int
	cnt   int
}

func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("ringq: capacity must be positive")
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// Create reserves the next record and returns it for in-place fill. The
// record is zeroed; it stays owned by the queue.
func (q *Queue[T]) Create() (*T, error) {
	if q.cnt == len(q.buf) {
		return nil, ErrQueueFull
	}
	rec := &q.buf[q.end]
	var zero T
	*rec = zero
	q.end++
	q.cnt++
	if q.end == len(q.buf) {
		q.end = 0
	}
	return rec, nil
}

// UndoCreate rolls back the most recent Create. rec must be exactly that
// newest, not-yet-popped record.
func (q *Queue[T]) UndoCreate(rec *T) {
	if q.cnt == 0 {
		panic("ringq: undo on empty queue")
	}
	prev := q.end - 1
	if prev < 0 {
		prev = len(q.buf) - 1
	}
	if rec != &q.buf[prev] {
		panic("ringq: undo of non-top record")
	}
	q.end = prev
	q.cnt--
}

// Pop removes the oldest unconsumed record. The returned pointer stays valid
// until the ring wraps back over it; popped records are never mutated by the
// queue except by that reuse.
func (q *Queue[T]) Pop() (*T, bool) {
	if q.cnt == 0 {
		return nil, false
	}
	rec := &q.buf[q.begin]
	q.begin++
	q.cnt--
	if q.begin == len(q.buf) {
		q.begin = 0
	}
	return rec, true
}

func (q *Queue[T]) Clear() {
	q.begin = 0
	q.end = 0
	q.cnt = 0
}

func (q *Queue[T]) Empty() bool {
	return q.cnt == 0
}

func (q *Queue[T]) Len() int {
	return q.cnt
}

func (q *Queue[T]) Cap() int {
	return len(q.buf)
}
