package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raulk/clock"
	"go.uber.org/zap"

	"viaduct/arena"
	"viaduct/assembler"
	"viaduct/engine"
	"viaduct/lib/ftypes"
	"viaduct/lib/timer"
)

/*
	The event loop. Drivers deliver completions on their own goroutines into
	the completions channel; everything past that channel runs on the one
	goroutine that asked. Packet completions are fed straight to the asking
	slot's assembler. Rpc completions have no assembler; they are
	materialized into the event ring, payload copied into the arena, and
	consumed in order by withdrawing the matching pending query.
*/

// errDeadline is the loop's internal timeout signal; callers translate it
// into their own timeout shape.
var errDeadline = errors.New("bridge: deadline reached")

// Event is one materialized rpc completion parked in the event ring. Payload
// bytes live in the arena and die with the execution.
type Event struct {
	Slot ftypes.SlotID
	Conn ftypes.ConnID
	Op   engine.Op
	Data arena.Ref
	Err  string
}

// NetQuery is one outbound exchange waiting in the query ring for the next
// loop turn to submit it.
type NetQuery struct {
	Slot      ftypes.SlotID
	Conn      ftypes.ConnID
	Function  string
	Payload   arena.Ref
	ExtraType int
	Phase     uint8
	Timeout   time.Duration
}

// flavor is the closed set of assembler kinds the loop feeds.
type flavor interface {
	State() assembler.State
	Timeout()
	Error(msg string)
	SetDesc(desc string)
}

// runUntil drives the loop until done reports true or the deadline passes.
// A zero deadline never expires. Returns errDeadline on timeout.
func (c *Context) runUntil(done func() bool, deadline time.Time) error {
	for {
		c.flushOutbound()
		c.drainCompletions()
		c.processEvents()
		if done() {
			return nil
		}
		// An absorbed event may have queued a follow-up submission (the sql
		// writer does); submit it before blocking.
		if !c.queries.Empty() {
			continue
		}

		var timerC <-chan time.Time
		var t *clock.Timer
		if !deadline.IsZero() {
			wait := deadline.Sub(c.Clock.Now())
			if wait <= 0 {
				return errDeadline
			}
			t = c.Clock.Timer(wait)
			timerC = t.C
		}

		c.acct.enterNet(c.Clock.Now())
		sample := timer.Start(c.Scope.ID(), "bridge.net_wait")
		select {
		case comp := <-c.completions:
			sample.Stop()
			c.acct.leaveNet(c.Clock.Now())
			if t != nil {
				t.Stop()
			}
			c.absorb(comp)
		case <-timerC:
			sample.Stop()
			c.acct.leaveNet(c.Clock.Now())
			// One final sweep: a completion may have raced the timer.
			c.drainCompletions()
			c.processEvents()
			if done() {
				return nil
			}
			return errDeadline
		}
	}
}

// flushOutbound submits every queued query to its connection's driver.
func (c *Context) flushOutbound() {
	for {
		rec, ok := c.queries.Pop()
		if !ok {
			return
		}
		conn, ok := c.Engines.Lookup(rec.Conn).Get()
		if !ok {
			c.failSlot(rec.Slot, rec.Conn, fmt.Sprintf("no such connection %d", rec.Conn))
			continue
		}
		drv, ok := c.Engines.Driver(conn.Protocol).Get()
		if !ok {
			c.failSlot(rec.Slot, rec.Conn, fmt.Sprintf("no driver for %s", conn.Protocol))
			continue
		}
		sub := engine.Submission{
			Slot:      rec.Slot,
			Function:  rec.Function,
			Payload:   c.pool.Bytes(rec.Payload),
			ExtraType: rec.ExtraType,
			Phase:     rec.Phase,
			Timeout:   rec.Timeout,
		}
		if err := drv.Submit(context.Background(), conn, sub); err != nil {
			c.failSlot(rec.Slot, rec.Conn, err.Error())
		}
	}
}

// drainCompletions absorbs everything already sitting in the channel without
// blocking.
func (c *Context) drainCompletions() {
	for {
		select {
		case comp := <-c.completions:
			c.absorb(comp)
		default:
			return
		}
	}
}

// absorb routes one completion: invalid slots are dropped, slots with a live
// assembler are fed directly, the rest are rpc answers for the event ring.
// A slot whose assembler already finalized no longer owns its completions;
// a duplicate terminal event from the engine degrades to a ghost answer
// instead of poisoning the finished query. Timed-out assemblers still absorb
// their late fragments.
func (c *Context) absorb(comp engine.Completion) {
	if !c.slots.IsValid(comp.Slot) {
		droppedInvalidSlot.Inc()
		return
	}
	if a, ok := c.asm[comp.Slot]; ok {
		switch a.State() {
		case assembler.StateWaiting, assembler.StateTimeout:
			c.dispatchPacket(a, comp)
			return
		}
	}
	c.materialize(comp)
}

// materialize parks an rpc completion in the event ring. The payload is
// copied into the arena so the driver's buffer can be reused; if the copy
// cannot be satisfied the event is rolled back and dropped rather than
// aborting whichever query happens to be running the loop.
func (c *Context) materialize(comp engine.Completion) {
	ev, err := c.events.Create()
	if err != nil {
		droppedRingFull.Inc()
		c.Logger.Error("event ring full, dropping completion",
			zap.Int32("slot", int32(comp.Slot)), zap.String("op", comp.Op.String()))
		return
	}
	ev.Slot, ev.Conn, ev.Op, ev.Err = comp.Slot, comp.Conn, comp.Op, comp.Err
	ev.Data = arena.Ref{}
	if len(comp.Data) > 0 {
		ref, ok := c.tryCopyIn(comp.Data)
		if !ok {
			c.events.UndoCreate(ev)
			droppedNoMemory.Inc()
			return
		}
		ev.Data = ref
	}
}

// tryCopyIn copies p into the arena, reporting failure instead of
// propagating the arena's exhaustion panic.
func (c *Context) tryCopyIn(p []byte) (ref arena.Ref, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if e, isErr := r.(error); isErr && errors.Is(e, arena.ErrOutOfMemory) {
				return
			}
			panic(r)
		}
	}()
	ref = c.pool.Allocate(len(p))
	copy(c.pool.Bytes(ref), p)
	return ref, true
}

// processEvents consumes the event ring in FIFO order, resolving each event
// against the pending registry. An event with no pending query is a ghost or
// duplicate answer; it is surfaced as a fetching error, never dropped.
func (c *Context) processEvents() {
	for {
		ev, ok := c.events.Pop()
		if !ok {
			return
		}
		id := ftypes.QueryID(ev.Slot)
		pq, err := c.pending.Withdraw(id)
		if err != nil {
			ghostAnswers.Inc()
			c.processing.RaiseFetchingError("no pending query for answer %d: %v", id, err)
			continue
		}
		ans := rpcAnswer{function: pq.Function}
		switch {
		case ev.Op == engine.OpError:
			ans.err = ev.Err
			c.saveLastNetError(ev.Err)
		case ev.Op == engine.OpRPCAnswer:
			ans.data = ev.Data
			if pq.Fetcher != nil {
				v, ferr := pq.Fetcher(c.pool.Bytes(ev.Data))
				if ferr != nil {
					c.processing.RaiseFetchingError("fetching %s answer: %v", pq.Function, ferr)
					ans.err = ferr.Error()
				} else {
					ans.val = v
				}
			}
		default:
			ans.err = fmt.Sprintf("unexpected %s event for rpc query", ev.Op)
		}
		c.resolved[id] = ans
	}
}

// dispatchPacket feeds one completion to the slot's assembler. The op set is
// per flavor; a mismatched op is a driver bug and finalizes the query with a
// protocol error.
func (c *Context) dispatchPacket(a flavor, comp engine.Completion) {
	if comp.Op == engine.OpError {
		a.SetDesc(c.connDesc(comp.Conn))
		a.Error(comp.Err)
		return
	}
	switch a := a.(type) {
	case *assembler.MC:
		switch comp.Op {
		case engine.OpMCValue:
			a.Value(comp.Data)
		case engine.OpMCEnd:
			a.End()
		case engine.OpMCStored:
			a.XStored(true)
		case engine.OpMCNotStored:
			a.XStored(false)
		case engine.OpMCVersion:
			a.Version(comp.Data)
		case engine.OpMCOther:
			a.Other(comp.Data)
		default:
			a.Error(fmt.Sprintf("Unexpected %s event", comp.Op))
		}
	case *assembler.SQL:
		switch comp.Op {
		case engine.OpSQLReady:
			conn, _ := c.Engines.Lookup(comp.Conn).Get()
			a.Ready(conn)
		case engine.OpSQLFragment:
			a.Fragment(comp.Data)
		case engine.OpSQLDone:
			a.Done()
		default:
			a.Error(fmt.Sprintf("Unexpected %s event", comp.Op))
		}
	case *assembler.RPC:
		switch comp.Op {
		case engine.OpRPCAnswer:
			a.Deliver(comp.Data)
		default:
			a.Error(fmt.Sprintf("Unexpected %s event", comp.Op))
		}
	}
}

// failSlot reports a submit-side failure for a slot. Packet slots get the
// error through their assembler; rpc slots get an error event so the answer
// path resolves them like any other completion.
func (c *Context) failSlot(s ftypes.SlotID, conn ftypes.ConnID, msg string) {
	if a, ok := c.asm[s]; ok {
		a.SetDesc(c.connDesc(conn))
		a.Error(msg)
		return
	}
	c.materialize(engine.Completion{Slot: s, Conn: conn, Op: engine.OpError, Err: msg})
}

func (c *Context) connDesc(id ftypes.ConnID) string {
	conn, ok := c.Engines.Lookup(id).Get()
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", conn.Host, conn.Port)
}
