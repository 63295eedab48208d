package bridge

import (
	"time"

	"viaduct/arena"
	"viaduct/lib/ftypes"
)

// accounting splits one execution's wall time into script time and net time.
// The mark is the start of the span currently being accumulated; the loop
// moves it on every transition into and out of a blocking wait.
type accounting struct {
	net     time.Duration
	script  time.Duration
	queries int
	mark    time.Time
}

func (a *accounting) reset(now time.Time) {
	*a = accounting{mark: now}
}

func (a *accounting) enterNet(now time.Time) {
	a.script += now.Sub(a.mark)
	a.mark = now
}

func (a *accounting) leaveNet(now time.Time) {
	a.net += now.Sub(a.mark)
	a.mark = now
}

func (a *accounting) finish(now time.Time) {
	a.script += now.Sub(a.mark)
	a.mark = now
}

// Stats is one coherent snapshot of the context. The worker publishes one
// after every operation; readers on other goroutines get the latest one.
type Stats struct {
	Running      bool          `json:"running"`
	NetTime      time.Duration `json:"net_time"`
	ScriptTime   time.Duration `json:"script_time"`
	Queries      int           `json:"queries"`
	Pending      int           `json:"pending"`
	EventDepth   int           `json:"event_depth"`
	QueryDepth   int           `json:"query_depth"`
	Arena        arena.Stats   `json:"arena"`
	SlotBegin    ftypes.SlotID `json:"slot_begin"`
	SlotEnd      ftypes.SlotID `json:"slot_end"`
	Conns        int           `json:"conns"`
	LastNetError string        `json:"last_net_error,omitempty"`
	Uptime       time.Duration `json:"uptime"`
}

// Stats returns the snapshot the worker last published. Safe from any
// goroutine; the uptime is recomputed at read time.
func (c *Context) Stats() Stats {
	s := *c.published.Load()
	s.Uptime = c.Clock.Now().Sub(c.startedAt)
	return s
}

// snapshot reads the live structures and may only run on the worker
// goroutine.
func (c *Context) snapshot() Stats {
	begin, end := c.slots.Window()
	return Stats{
		Running:      c.running,
		NetTime:      c.acct.net,
		ScriptTime:   c.acct.script,
		Queries:      c.acct.queries,
		Pending:      c.pending.Count(),
		EventDepth:   c.events.Len(),
		QueryDepth:   c.queries.Len(),
		Arena:        c.pool.Stats(),
		SlotBegin:    begin,
		SlotEnd:      end,
		Conns:        c.Engines.ConnCount(),
		LastNetError: c.LastNetError(),
		Uptime:       c.Clock.Now().Sub(c.startedAt),
	}
}

func (c *Context) publishStats() {
	s := c.snapshot()
	c.published.Store(&s)
}

// NetTime is the accumulated time this execution spent blocked on engines.
func (c *Context) NetTime() time.Duration {
	return c.acct.net
}

// ScriptTime is the accumulated time this execution spent between waits.
func (c *Context) ScriptTime() time.Duration {
	return c.acct.script
}

// QueryCount is the number of queries finalized in this execution.
func (c *Context) QueryCount() int {
	return c.acct.queries
}
