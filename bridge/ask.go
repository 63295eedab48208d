package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"viaduct/arena"
	"viaduct/assembler"
	"viaduct/engine"
	"viaduct/journal"
	"viaduct/lib/ftypes"
	"viaduct/pending"
	"viaduct/query"
)

var (
	ErrNotRunning = errors.New("bridge: no execution running")
	ErrRPCTimeout = errors.New("bridge: rpc wait timed out")
)

// Start opens one execution span. Everything asked until Finish shares one
// arena generation and one accounting window.
func (c *Context) Start() {
	if c.running {
		panic("bridge: execution already running")
	}
	c.pool.Init()
	c.asm = make(map[ftypes.SlotID]flavor)
	c.resolved = make(map[ftypes.QueryID]rpcAnswer)
	c.processing.Reset()
	c.acct.reset(c.Clock.Now())
	c.running = true
	c.publishStats()
	executions.Inc()
}

// Finish tears the execution down. The order matters: both rings are cleared
// before the pending registry resets, the slot window invalidates before the
// arena reclaims, so nothing can observe a live reference into freed storage.
func (c *Context) Finish() {
	if !c.running {
		return
	}
	now := c.Clock.Now()
	c.acct.finish(now)

	e := journal.Entry{
		Kind:         journal.KindSummary,
		At:           now.UnixMicro(),
		Worker:       c.Scope.ID(),
		Queries:      c.acct.queries,
		NetMicros:    c.acct.net.Microseconds(),
		ScriptMicros: c.acct.script.Microseconds(),
	}
	if err := c.Journal.LogEntry(context.Background(), e); err != nil {
		c.Logger.Warn("journal summary failed", zap.Error(err))
	}
	if err := c.Journal.Flush(100 * time.Millisecond); err != nil {
		c.Logger.Debug("journal flush incomplete", zap.Error(err))
	}

	c.queries.Clear()
	c.events.Clear()
	for len(c.completions) > 0 {
		<-c.completions
	}
	c.asm = make(map[ftypes.SlotID]flavor)
	c.resolved = make(map[ftypes.QueryID]rpcAnswer)
	c.pending.HardReset()
	c.slots.InvalidateAll()
	c.pool.HardReclaim()
	c.processing.Reset()
	c.running = false
	c.publishStats()
}

// Ask issues one packet query and drives the loop until its answer
// finalizes. The result lands in q.Answer; the error return covers the
// request-fatal failures (no execution, queue full, no slots, out of
// memory), not network ones.
func (c *Context) Ask(q *query.Packet) (err error) {
	if !c.running {
		return ErrNotRunning
	}
	switch q.Protocol {
	case ftypes.ProtocolMemcache, ftypes.ProtocolSql, ftypes.ProtocolRpc:
	default:
		return fmt.Errorf("bridge: unknown protocol %d", q.Protocol)
	}
	defer c.publishStats()
	defer c.recoverNoMemory(&err, &q.Answer)
	askedAt := c.Clock.Now()
	q.Answer = query.PacketAnswer{}

	// Arena copy first: an exhausted pool aborts before any record exists.
	payload := c.pool.Allocate(len(q.Data))
	copy(c.pool.Bytes(payload), q.Data)

	rec, err := c.queries.Create()
	if err != nil {
		return err
	}
	slotID, err := c.slots.Create()
	if err != nil {
		c.queries.UndoCreate(rec)
		return err
	}

	var a flavor
	*rec = NetQuery{
		Slot:     slotID,
		Conn:     q.Conn,
		Function: q.Function,
		Payload:  payload,
		Timeout:  q.Timeout,
	}
	switch q.Protocol {
	case ftypes.ProtocolMemcache:
		mc := assembler.NewMC(c.pool, &q.Answer)
		mc.SetQueryType(q.ExtraType)
		rec.ExtraType = q.ExtraType
		a = mc
	case ftypes.ProtocolSql:
		sq := assembler.NewSQL(c.pool, &q.Answer)
		// The driver answers the acquire phase with a ready event; the
		// writer then submits the actual statement as the execute phase.
		rec.Payload = arena.Ref{}
		rec.Phase = engine.PhaseAcquire
		sq.SetWriter(func(interface{}) {
			wrec, werr := c.queries.Create()
			if werr != nil {
				sq.Error(werr.Error())
				return
			}
			*wrec = NetQuery{
				Slot:    slotID,
				Conn:    q.Conn,
				Payload: payload,
				Phase:   engine.PhaseExecute,
				Timeout: q.Timeout,
			}
		})
		a = sq
	case ftypes.ProtocolRpc:
		a = assembler.NewRPC(c.pool, &q.Answer)
	}
	c.asm[slotID] = a

	runErr := c.runUntil(func() bool {
		return a.State() != assembler.StateWaiting
	}, q.Deadline(askedAt))
	if runErr == errDeadline {
		a.Timeout()
	}
	c.finalizePacket(q, a, slotID, askedAt)
	return nil
}

// finalizePacket books one finished packet query: counters, last net error,
// journal entry.
func (c *Context) finalizePacket(q *query.Packet, a flavor, slotID ftypes.SlotID, askedAt time.Time) {
	var outcome string
	switch a.State() {
	case assembler.StateDone:
		outcome = journal.OutcomeOK
	case assembler.StateTimeout:
		outcome = journal.OutcomeTimeout
		c.saveLastNetError(q.Answer.Err)
	default:
		outcome = journal.OutcomeError
		c.saveLastNetError(q.Answer.Err)
	}
	// A timed-out assembler stays keyed as the dead sink for fragments still
	// in flight; any other finalized slot stops being delivered to.
	if a.State() != assembler.StateTimeout {
		delete(c.asm, slotID)
	}
	c.acct.queries++
	queriesTotal.WithLabelValues(q.Protocol.String(), outcome).Inc()

	e := journal.Entry{
		Kind:     journal.KindQuery,
		At:       askedAt.UnixMicro(),
		Worker:   c.Scope.ID(),
		Slot:     slotID,
		Conn:     q.Conn,
		Protocol: q.Protocol.String(),
		Function: q.Function,
		Outcome:  outcome,
		Error:    q.Answer.Err,
		Bytes:    len(q.Data),
		Micros:   c.Clock.Now().Sub(askedAt).Microseconds(),
	}
	if err := c.Journal.LogEntry(context.Background(), e); err != nil {
		c.Logger.Debug("journal entry failed", zap.Error(err))
	}
}

// AskX2 runs the loopback self-test: the answer to val is val squared,
// computed here and delivered through the full completion path, so it
// exercises slots, assemblers and the loop with no network at all.
func (c *Context) AskX2(q *query.X2) (err error) {
	if !c.running {
		return ErrNotRunning
	}
	var ans query.PacketAnswer
	defer c.publishStats()
	defer c.recoverNoMemory(&err, &ans)
	askedAt := c.Clock.Now()
	q.Answer = query.X2Answer{}

	slotID, err := c.slots.Create()
	if err != nil {
		return err
	}
	a := assembler.NewRPC(c.pool, &ans)
	c.asm[slotID] = a

	c.completions <- engine.Completion{
		Slot: slotID,
		Op:   engine.OpRPCAnswer,
		Data: strconv.AppendInt(nil, int64(q.Val)*int64(q.Val), 10),
	}
	if runErr := c.runUntil(func() bool {
		return a.State() != assembler.StateWaiting
	}, time.Time{}); runErr != nil {
		return runErr
	}
	delete(c.asm, slotID)

	if ans.OK {
		x2, perr := strconv.Atoi(string(ans.Res))
		if perr != nil {
			q.Answer = query.X2Answer{Err: perr.Error()}
		} else {
			q.Answer = query.X2Answer{OK: true, X2: x2}
		}
	} else {
		q.Answer = query.X2Answer{Err: ans.Err}
	}
	c.acct.queries++

	e := journal.Entry{
		Kind:     journal.KindQuery,
		At:       askedAt.UnixMicro(),
		Worker:   c.Scope.ID(),
		Slot:     slotID,
		Function: "x2",
		Outcome:  journal.OutcomeOK,
		Micros:   c.Clock.Now().Sub(askedAt).Microseconds(),
	}
	if jerr := c.Journal.LogEntry(context.Background(), e); jerr != nil {
		c.Logger.Debug("journal entry failed", zap.Error(jerr))
	}
	return nil
}

// Connect opens an engine connection. Connections are worker-scoped, not
// execution-scoped; they survive Finish.
func (c *Context) Connect(q *query.Connect) error {
	defer c.publishStats()
	conn, err := c.Engines.Open(context.Background(), q.Protocol, q.Host, q.Port)
	if err != nil {
		q.Answer = query.ConnectAnswer{Err: err.Error()}
		return nil
	}
	q.Answer = query.ConnectAnswer{OK: true, ConnID: conn.ID}
	return nil
}

// SendRPC issues one rpc query and parks it in the pending registry under
// its query id, which doubles as the answer correlator on the wire. The
// query goes out immediately; the answer is collected with WaitRPC.
func (c *Context) SendRPC(conn ftypes.ConnID, function string, args []byte, timeout time.Duration, fetch pending.Fetcher) (id ftypes.QueryID, err error) {
	if !c.running {
		return 0, ErrNotRunning
	}
	defer c.publishStats()
	defer c.recoverNoMemory(&err, nil)

	payload := c.pool.Allocate(len(args))
	copy(c.pool.Bytes(payload), args)

	rec, err := c.queries.Create()
	if err != nil {
		return 0, err
	}
	slotID, err := c.slots.Create()
	if err != nil {
		c.queries.UndoCreate(rec)
		return 0, err
	}
	*rec = NetQuery{
		Slot:     slotID,
		Conn:     conn,
		Function: function,
		Payload:  payload,
		Timeout:  timeout,
	}

	id = ftypes.QueryID(slotID)
	c.pending.Save(&pending.Query{
		ID:       id,
		Function: function,
		Slot:     slotID,
		Fetcher:  fetch,
	})
	c.flushOutbound()
	return id, nil
}

// WaitRPC drives the loop until the answer for id resolves. It returns the
// fetched value when a fetcher was registered, the raw answer bytes
// otherwise. The raw bytes are an arena view and die with the execution.
func (c *Context) WaitRPC(id ftypes.QueryID, timeout time.Duration) (interface{}, error) {
	if !c.running {
		return nil, ErrNotRunning
	}
	defer c.publishStats()
	askedAt := c.Clock.Now()
	deadline := time.Time{}
	if timeout > 0 {
		deadline = askedAt.Add(timeout)
	}
	runErr := c.runUntil(func() bool {
		_, ok := c.resolved[id]
		return ok
	}, deadline)

	if ans, ok := c.resolved[id]; ok {
		delete(c.resolved, id)
		c.finalizeRPC(id, ans, askedAt)
		if ans.err != "" {
			return nil, errors.New(ans.err)
		}
		if ans.val != nil {
			return ans.val, nil
		}
		return c.pool.Bytes(ans.data), nil
	}
	if runErr == errDeadline {
		if _, werr := c.pending.Withdraw(id); werr == nil {
			c.saveLastNetError("Timeout")
			c.finalizeRPC(id, rpcAnswer{err: "Timeout"}, askedAt)
			return nil, ErrRPCTimeout
		}
		return nil, fmt.Errorf("bridge: wait on unknown query %d", id)
	}
	return nil, runErr
}

func (c *Context) finalizeRPC(id ftypes.QueryID, ans rpcAnswer, askedAt time.Time) {
	outcome := journal.OutcomeOK
	switch {
	case ans.err == "Timeout":
		outcome = journal.OutcomeTimeout
	case ans.err != "":
		outcome = journal.OutcomeError
	}
	c.acct.queries++
	queriesTotal.WithLabelValues(ftypes.ProtocolRpc.String(), outcome).Inc()

	e := journal.Entry{
		Kind:     journal.KindQuery,
		At:       askedAt.UnixMicro(),
		Worker:   c.Scope.ID(),
		Slot:     ftypes.SlotID(id),
		Protocol: ftypes.ProtocolRpc.String(),
		Function: ans.function,
		Outcome:  outcome,
		Error:    ans.err,
		Bytes:    ans.data.Len(),
		Micros:   c.Clock.Now().Sub(askedAt).Microseconds(),
	}
	if err := c.Journal.LogEntry(context.Background(), e); err != nil {
		c.Logger.Debug("journal entry failed", zap.Error(err))
	}
}

// recoverNoMemory converts an arena exhaustion panic into an error return,
// aborting just the asking request. Any other panic keeps flying.
func (c *Context) recoverNoMemory(err *error, ans *query.PacketAnswer) {
	r := recover()
	if r == nil {
		return
	}
	if r != arena.ErrOutOfMemory {
		panic(r)
	}
	if ans != nil {
		ans.OK = false
		ans.Err = "Out of memory"
	}
	*err = arena.ErrOutOfMemory
}
