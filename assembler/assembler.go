package assembler

import (
	"viaduct/arena"
	"viaduct/query"
)

/*
	Assemblers turn the raw fragments arriving from an engine connection into
	the final answer of one in-flight query. Each assembler captures the
	arena generation at creation time; if the execution that asked the query
	has since been torn down (generation moved on), the assembler is dead and
	every fragment delivered to it is dropped without touching the answer.
	State transitions still happen on a dead assembler, so the protocol
	bookkeeping stays consistent either way.

	A timeout finalizes the answer and poisons the generation with a
	sentinel, so fragments already in flight when the clock fired land on a
	dead assembler. Delivering an event after Done or Error is a dispatcher
	bug and panics.
*/

type State uint8

const (
	StateWaiting State = iota
	StateDone
	StateError
	StateTimeout
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// timedOutGeneration never matches a live pool generation.
const timedOutGeneration int64 = -1

// Base carries the per-query liveness and finalization shared by every
// protocol assembler. Subtypes embed it.
type Base struct {
	pool  *arena.Pool
	gen   int64
	state State
	ans   *query.PacketAnswer
}

func NewBase(pool *arena.Pool, ans *query.PacketAnswer) Base {
	return Base{pool: pool, gen: pool.Generation(), ans: ans}
}

// Alive reports whether the asking execution still exists.
func (b *Base) Alive() bool {
	return b.gen == b.pool.Generation()
}

func (b *Base) State() State {
	return b.state
}

// Timeout finalizes the answer as timed out. The assembler stays usable as
// an event sink so fragments still in flight are absorbed silently.
func (b *Base) Timeout() {
	if b.state != StateWaiting {
		panic("assembler: timeout on finalized assembler")
	}
	if b.Alive() {
		b.ans.OK = false
		b.ans.Err = "Timeout"
	}
	b.gen = timedOutGeneration
	b.state = StateTimeout
}

// Error finalizes the answer with an error description. After a timeout the
// call is a no-op; the answer already says "Timeout".
func (b *Base) Error(msg string) {
	if b.state == StateTimeout {
		return
	}
	if b.state != StateWaiting {
		panic("assembler: error on finalized assembler")
	}
	if b.Alive() {
		b.ans.OK = false
		b.ans.Err = msg
	}
	b.state = StateError
}

// SetDesc attaches a diagnostic description, usually the peer address.
func (b *Base) SetDesc(desc string) {
	if b.Alive() {
		b.ans.Desc = desc
	}
}

// acceptEvent gates fragment delivery: false after a timeout (late arrival,
// drop it), panic after done or error (the dispatcher must stop delivering
// once a query finalizes).
func (b *Base) acceptEvent() bool {
	switch b.state {
	case StateWaiting:
		return true
	case StateTimeout:
		return false
	default:
		panic("assembler: event after " + b.state.String())
	}
}
