package sqldb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"

	"viaduct/engine"
	"viaduct/lib/ftypes"
	"viaduct/pcache"
)

/*
	The sql driver runs exchanges in two phases. Acquire verifies the pool is
	reachable and answers with a ready event; the bridge then runs the parked
	writer, which submits the actual query as the execute phase. Read queries
	stream back as a header fragment plus one fragment per row; writes answer
	with a single summary row. Statements for the read path are prepared once
	and cached; the cache closes them on the way out.
*/

const stmtCacheCost = 1 << 12

type Driver struct {
	conn   Connection
	stmts  pcache.PCache
	sink   engine.Sink
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDriver(conn Connection, sink engine.Sink) (*Driver, error) {
	stmts, err := pcache.NewPCache(stmtCacheCost, 1, func(v interface{}) {
		if s, ok := v.(*sqlx.Stmt); ok {
			s.Close()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sqldb: statement cache: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{conn: conn, stmts: stmts, sink: sink, ctx: ctx, cancel: cancel}, nil
}

func (d *Driver) Protocol() ftypes.Protocol {
	return ftypes.ProtocolSql
}

// DB exposes the underlying pool for connection stats reporting.
func (d *Driver) DB() *sqlx.DB {
	return d.conn.DB
}

// RecordStats exports statement cache counters; called from the bridge's
// reporting loop.
func (d *Driver) RecordStats() {
	pcache.RecordStats("sqldb_stmts", d.stmts)
}

// Open attaches the shared pool. The driver addresses one database; host
// and port on the connection are informational, matching proxied setups
// where the script connects to "unknown".
func (d *Driver) Open(_ context.Context, conn *engine.Conn) error {
	conn.State = d.conn
	return nil
}

func (d *Driver) Submit(_ context.Context, conn *engine.Conn, sub engine.Submission) error {
	switch sub.Phase {
	case engine.PhaseAcquire:
		d.wg.Add(1)
		go d.acquire(conn, sub.Slot, sub.Timeout)
		return nil
	case engine.PhaseExecute:
		q := string(sub.Payload)
		d.wg.Add(1)
		go d.execute(conn, sub.Slot, q, sub.Timeout)
		return nil
	default:
		return fmt.Errorf("sqldb: submission must be phased")
	}
}

func (d *Driver) acquire(conn *engine.Conn, slot ftypes.SlotID, timeout time.Duration) {
	defer d.wg.Done()
	ctx, cancel := d.opCtx(timeout)
	defer cancel()

	if err := d.conn.PingContext(ctx); err != nil {
		d.fail(conn, slot, err)
		return
	}
	d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: engine.OpSQLReady})
}

func (d *Driver) execute(conn *engine.Conn, slot ftypes.SlotID, q string, timeout time.Duration) {
	defer d.wg.Done()
	ctx, cancel := d.opCtx(timeout)
	defer cancel()

	if isRead(q) {
		ops.WithLabelValues("query").Inc()
		d.runQuery(ctx, conn, slot, q)
	} else {
		ops.WithLabelValues("exec").Inc()
		d.runExec(ctx, conn, slot, q)
	}
}

func (d *Driver) runQuery(ctx context.Context, conn *engine.Conn, slot ftypes.SlotID, q string) {
	rows, err := d.queryStmt(ctx, q)
	if err != nil {
		d.fail(conn, slot, err)
		return
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		d.fail(conn, slot, err)
		return
	}
	deliver := func(data []byte) {
		d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: engine.OpSQLFragment, Data: data})
	}
	deliver(EncodeHeader(cols))

	raw := make([]interface{}, len(cols))
	for i := range raw {
		raw[i] = new([]byte)
	}
	vals := make([][]byte, len(cols))
	for rows.Next() {
		if err := rows.Scan(raw...); err != nil {
			d.fail(conn, slot, err)
			return
		}
		for i := range raw {
			vals[i] = *raw[i].(*[]byte)
		}
		deliver(EncodeRow(vals))
	}
	if err := rows.Err(); err != nil {
		d.fail(conn, slot, err)
		return
	}
	d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: engine.OpSQLDone})
}

// queryStmt runs q through the statement cache. A cached statement can be
// closed by eviction between Get and use; reads are side-effect free, so
// that one failure retries on a fresh uncached statement.
func (d *Driver) queryStmt(ctx context.Context, q string) (*sqlx.Rows, error) {
	key := xxhash.Sum64String(q)
	if v, ok := d.stmts.Get(key); ok {
		if s, ok := v.(*sqlx.Stmt); ok {
			stmtHits.Inc()
			rows, err := s.QueryxContext(ctx)
			if err == nil {
				return rows, nil
			}
		}
	}
	stmtMisses.Inc()
	s, err := d.conn.PreparexContext(ctx, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.QueryxContext(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	if !d.stmts.Set(key, s, 1) {
		// Never admitted: close it ourselves. The open rows keep the
		// underlying statement alive until they are drained.
		s.Close()
	}
	return rows, nil
}

func (d *Driver) runExec(ctx context.Context, conn *engine.Conn, slot ftypes.SlotID, q string) {
	res, err := d.conn.ExecContext(ctx, q)
	if err != nil {
		d.fail(conn, slot, err)
		return
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()

	deliver := func(data []byte) {
		d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: engine.OpSQLFragment, Data: data})
	}
	deliver(EncodeHeader([]string{"rows_affected", "last_insert_id"}))
	deliver(EncodeRow([][]byte{
		[]byte(fmt.Sprintf("%d", affected)),
		[]byte(fmt.Sprintf("%d", lastID)),
	}))
	d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: engine.OpSQLDone})
}

func (d *Driver) fail(conn *engine.Conn, slot ftypes.SlotID, err error) {
	failures.Inc()
	d.sink.Deliver(engine.Completion{Slot: slot, Conn: conn.ID, Op: engine.OpError, Err: err.Error()})
}

func (d *Driver) opCtx(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(d.ctx, timeout)
	}
	return context.WithCancel(d.ctx)
}

func (d *Driver) Close() error {
	d.cancel()
	d.wg.Wait()
	d.stmts.Cache.Close()
	return d.conn.Close()
}

var readVerbs = map[string]bool{
	"SELECT": true, "SHOW": true, "DESCRIBE": true, "DESC": true,
	"EXPLAIN": true, "PRAGMA": true,
}

func isRead(q string) bool {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return false
	}
	return readVerbs[strings.ToUpper(fields[0])]
}
