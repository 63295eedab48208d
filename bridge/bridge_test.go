package bridge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/buger/jsonparser"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viaduct/arena"
	"viaduct/engine"
	"viaduct/engine/loopback"
	"viaduct/journal"
	"viaduct/lib/ftypes"
	"viaduct/query"
	"viaduct/resource"
	"viaduct/ringq"
)

func testContext(t *testing.T) *Context {
	return testContextClock(t, nil)
}

func testContextClock(t *testing.T, clk clock.Clock) *Context {
	c := CreateFromResources(Resources{
		Scope:    resource.NewWorkerScope(1),
		Clock:    clk,
		EventCap: 64,
		QueryCap: 64,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func openLoopback(t *testing.T, c *Context, p ftypes.Protocol, h loopback.Handler) ftypes.ConnID {
	require.NoError(t, c.Engines.Register(loopback.New(p, c.Sink(), h)))
	q := &query.Connect{Host: "loop", Port: 0, Protocol: p}
	require.NoError(t, c.Connect(q))
	require.True(t, q.Answer.OK, q.Answer.Err)
	return q.Answer.ConnID
}

func TestAskMemcacheGet(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, sub engine.Submission) []engine.Completion {
		assert.Equal(t, "get k\r\n", string(sub.Payload))
		return []engine.Completion{
			{Op: engine.OpMCValue, Data: []byte("ab")},
			{Op: engine.OpMCValue, Data: []byte("cd")},
			{Op: engine.OpMCEnd},
		}
	})
	c.Start()
	defer c.Finish()

	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	assert.True(t, q.Answer.OK)
	assert.Equal(t, "abcdEND\r\n", string(q.Answer.Res))
	assert.Equal(t, 1, c.QueryCount())
	assert.Empty(t, c.LastNetError())
}

func TestAskMemcacheStoreFamily(t *testing.T) {
	scenarios := []struct {
		op  engine.Op
		res string
	}{
		{engine.OpMCStored, "STORED\r\n"},
		{engine.OpMCNotStored, "NOT_STORED\r\n"},
	}
	for _, scenario := range scenarios {
		c := testContext(t)
		conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
			return []engine.Completion{{Op: scenario.op}}
		})
		c.Start()
		q := &query.Packet{Conn: conn, Data: []byte("set k 0 0 1\r\nv\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
		require.NoError(t, c.Ask(q))
		assert.True(t, q.Answer.OK)
		assert.Equal(t, scenario.res, string(q.Answer.Res))
		c.Finish()
	}
}

func TestAskMemcacheVersion(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return []engine.Completion{{Op: engine.OpMCVersion, Data: []byte("1.6.9")}}
	})
	c.Start()
	defer c.Finish()

	q := &query.Packet{
		Conn:      conn,
		Data:      []byte("version\r\n"),
		Protocol:  ftypes.ProtocolMemcache,
		ExtraType: query.ExtraVersion,
		Timeout:   time.Second,
	}
	require.NoError(t, c.Ask(q))
	assert.True(t, q.Answer.OK)
	assert.Equal(t, "1.6.9", string(q.Answer.Res))
}

func TestAskMemcacheUnexpectedStored(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return []engine.Completion{
			{Op: engine.OpMCValue, Data: []byte("ab")},
			{Op: engine.OpMCStored},
		}
	})
	c.Start()
	defer c.Finish()

	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	assert.False(t, q.Answer.OK)
	assert.Equal(t, "Unexpected STORED", q.Answer.Err)
	assert.Equal(t, "Unexpected STORED", c.LastNetError())
}

func TestAskErrorEvent(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return []engine.Completion{{Op: engine.OpError, Err: "connection dropped"}}
	})
	c.Start()
	defer c.Finish()

	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	assert.False(t, q.Answer.OK)
	assert.Equal(t, "connection dropped", q.Answer.Err)
	assert.Equal(t, "loop:0", q.Answer.Desc)
	assert.Equal(t, "connection dropped", c.LastNetError())
}

func TestLastNetErrorTruncated(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return []engine.Completion{{Op: engine.OpError, Err: string(long)}}
	})
	c.Start()
	defer c.Finish()

	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	assert.Equal(t, string(long), q.Answer.Err)
	assert.Len(t, c.LastNetError(), maxNetErrorLen)
	assert.Equal(t, string(long[:maxNetErrorLen]), c.LastNetError())
}

func TestAskSqlChain(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolSql, func(_ *engine.Conn, sub engine.Submission) []engine.Completion {
		switch sub.Phase {
		case engine.PhaseAcquire:
			assert.Empty(t, sub.Payload)
			return []engine.Completion{{Op: engine.OpSQLReady}}
		case engine.PhaseExecute:
			assert.Equal(t, "select v from t", string(sub.Payload))
			return []engine.Completion{
				{Op: engine.OpSQLFragment, Data: []byte("header")},
				{Op: engine.OpSQLFragment, Data: []byte("row1")},
				{Op: engine.OpSQLFragment, Data: []byte("row2")},
				{Op: engine.OpSQLDone},
			}
		}
		return nil
	})
	c.Start()
	defer c.Finish()

	q := &query.Packet{Conn: conn, Data: []byte("select v from t"), Protocol: ftypes.ProtocolSql, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	require.True(t, q.Answer.OK)
	require.NotNil(t, q.Answer.Chain)
	assert.Equal(t, 3, q.Answer.Chain.Len())

	var got []string
	it := q.Answer.Chain.Iter()
	for f, ok := it.Next(); ok; f, ok = it.Next() {
		got = append(got, string(f))
	}
	assert.Equal(t, []string{"header", "row1", "row2"}, got)
}

func TestAskTimeoutAbsorbsLateEvents(t *testing.T) {
	var calls int
	var firstSlot ftypes.SlotID
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, sub engine.Submission) []engine.Completion {
		calls++
		if calls == 1 {
			firstSlot = sub.Slot
			return nil
		}
		return []engine.Completion{{Op: engine.OpMCValue, Data: []byte("v")}, {Op: engine.OpMCEnd}}
	})
	c.Start()
	defer c.Finish()

	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: 30 * time.Millisecond}
	require.NoError(t, c.Ask(q))
	assert.False(t, q.Answer.OK)
	assert.Equal(t, "Timeout", q.Answer.Err)
	assert.Equal(t, "Timeout", c.LastNetError())

	// The engine answers after the deadline: the timed out assembler is
	// still registered and swallows the fragments without touching the
	// finalized answer.
	c.Sink().Deliver(engine.Completion{Slot: firstSlot, Conn: conn, Op: engine.OpMCValue, Data: []byte("late")})
	c.Sink().Deliver(engine.Completion{Slot: firstSlot, Conn: conn, Op: engine.OpMCEnd})

	q2 := &query.Packet{Conn: conn, Data: []byte("get k2\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q2))
	assert.True(t, q2.Answer.OK)
	assert.Equal(t, "vEND\r\n", string(q2.Answer.Res))
	assert.Equal(t, "Timeout", q.Answer.Err)
}

func TestStaleSlotDeliveryAfterFinish(t *testing.T) {
	var calls int
	var firstSlot ftypes.SlotID
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, sub engine.Submission) []engine.Completion {
		calls++
		if calls == 1 {
			firstSlot = sub.Slot
			return nil
		}
		return []engine.Completion{{Op: engine.OpMCEnd}}
	})

	c.Start()
	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: 30 * time.Millisecond}
	require.NoError(t, c.Ask(q))
	require.Equal(t, "Timeout", q.Answer.Err)
	c.Finish()

	// The answer lands after teardown invalidated the slot window; it must
	// be dropped without disturbing the next execution.
	c.Start()
	defer c.Finish()
	c.Sink().Deliver(engine.Completion{Slot: firstSlot, Conn: conn, Op: engine.OpMCValue, Data: []byte("stale")})

	q2 := &query.Packet{Conn: conn, Data: []byte("get k2\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q2))
	assert.True(t, q2.Answer.OK)
	assert.Equal(t, "END\r\n", string(q2.Answer.Res))
	assert.Nil(t, c.Processing().FetchingErr())
}

func TestAskNoConnection(t *testing.T) {
	c := testContext(t)
	openLoopback(t, c, ftypes.ProtocolMemcache, nil)
	c.Start()
	defer c.Finish()

	q := &query.Packet{Conn: 99, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	assert.False(t, q.Answer.OK)
	assert.Equal(t, "no such connection 99", q.Answer.Err)
	assert.Equal(t, "unknown", q.Answer.Desc)
}

func TestAskNotRunning(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, nil)

	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache}
	assert.ErrorIs(t, c.Ask(q), ErrNotRunning)

	_, err := c.SendRPC(conn, "f", nil, time.Second, nil)
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = c.WaitRPC(1, time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStartTwicePanics(t *testing.T) {
	c := testContext(t)
	c.Start()
	defer c.Finish()
	assert.Panics(t, func() { c.Start() })
}

func TestAskQueueFull(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, nil)
	c.Start()
	defer c.Finish()

	for i := 0; i < c.queries.Cap(); i++ {
		_, err := c.queries.Create()
		require.NoError(t, err)
	}
	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	err := c.Ask(q)
	assert.ErrorIs(t, err, ringq.ErrQueueFull)
	assert.Equal(t, c.queries.Cap(), c.queries.Len())
}

func TestAskOutOfMemoryAborts(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, nil)
	c.Start()
	defer c.Finish()

	q := &query.Packet{
		Conn:     conn,
		Data:     make([]byte, arena.MaxMem+1),
		Protocol: ftypes.ProtocolMemcache,
		Timeout:  time.Second,
	}
	err := c.Ask(q)
	assert.ErrorIs(t, err, arena.ErrOutOfMemory)
	assert.False(t, q.Answer.OK)
	assert.Equal(t, "Out of memory", q.Answer.Err)

	// The pool is exhausted, not corrupted: small queries still work and
	// the next execution starts clean.
	c.Finish()
	c.Start()
	q2 := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q2))
}

func TestAskX2(t *testing.T) {
	c := testContext(t)
	c.Start()
	defer c.Finish()

	q := &query.X2{Val: 12}
	require.NoError(t, c.AskX2(q))
	assert.True(t, q.Answer.OK)
	assert.Equal(t, 144, q.Answer.X2)

	q = &query.X2{Val: -7}
	require.NoError(t, c.AskX2(q))
	assert.Equal(t, 49, q.Answer.X2)
	assert.Equal(t, 2, c.QueryCount())
}

func TestSendWaitRPC(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolRpc, nil)
	c.Start()
	defer c.Finish()

	id, err := c.SendRPC(conn, "echo", []byte("hello"), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, ftypes.QueryID(c.Stats().SlotEnd-1), id)

	got, err := c.WaitRPC(id, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got.([]byte)))
	assert.Equal(t, 0, c.pending.Count())
}

func TestWaitRPCFetcher(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolRpc, nil)
	c.Start()
	defer c.Finish()

	id, err := c.SendRPC(conn, "echo", []byte("21"), time.Second, func(p []byte) (interface{}, error) {
		return len(p), nil
	})
	require.NoError(t, err)
	got, err := c.WaitRPC(id, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestWaitRPCFetcherError(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolRpc, nil)
	c.Start()
	defer c.Finish()

	id, err := c.SendRPC(conn, "echo", []byte("x"), time.Second, func([]byte) (interface{}, error) {
		return nil, fmt.Errorf("bad payload")
	})
	require.NoError(t, err)
	_, err = c.WaitRPC(id, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad payload")
	require.Error(t, c.Processing().FetchingErr())
	assert.Contains(t, c.Processing().FetchingErr().Error(), "fetching echo answer")
}

func TestWaitRPCUnknownID(t *testing.T) {
	c := testContext(t)
	openLoopback(t, c, ftypes.ProtocolRpc, nil)
	c.Start()
	defer c.Finish()

	_, err := c.WaitRPC(424242, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown query")
}

func TestWaitRPCTimeout(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolRpc, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return nil
	})
	c.Start()
	defer c.Finish()

	id, err := c.SendRPC(conn, "ghost", []byte("x"), time.Second, nil)
	require.NoError(t, err)
	_, err = c.WaitRPC(id, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrRPCTimeout)
	assert.Equal(t, "Timeout", c.LastNetError())
	// The query was withdrawn on timeout; a late answer is now a ghost.
	assert.Equal(t, 0, c.pending.Count())
}

func TestGhostAnswerSurfaces(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolRpc, nil)
	c.Start()
	defer c.Finish()

	id, err := c.SendRPC(conn, "echo", []byte("once"), time.Second, nil)
	require.NoError(t, err)
	_, err = c.WaitRPC(id, time.Second)
	require.NoError(t, err)

	// A duplicate answer for an already-collected query must surface as a
	// fetching error, never vanish.
	c.Sink().Deliver(engine.Completion{
		Slot: ftypes.SlotID(id),
		Conn: conn,
		Op:   engine.OpRPCAnswer,
		Data: []byte("again"),
	})
	x2 := &query.X2{Val: 2}
	require.NoError(t, c.AskX2(x2))

	require.Error(t, c.Processing().FetchingErr())
	assert.Contains(t, c.Processing().FetchingErr().Error(), "no pending query")
}

func TestDuplicateTerminalEventBecomesGhost(t *testing.T) {
	c := testContext(t)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return []engine.Completion{
			{Op: engine.OpMCEnd},
			{Op: engine.OpMCEnd},
		}
	})
	c.Start()
	defer c.Finish()

	// The second end lands after the assembler finalized; it must degrade to
	// a ghost answer instead of disturbing the finished query.
	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	assert.True(t, q.Answer.OK)
	assert.Equal(t, "END\r\n", string(q.Answer.Res))

	require.Error(t, c.Processing().FetchingErr())
	assert.Contains(t, c.Processing().FetchingErr().Error(), "no pending query")
}

func TestFinishTeardown(t *testing.T) {
	c := testContext(t)
	mcConn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return []engine.Completion{{Op: engine.OpMCEnd}}
	})
	rpcConn := openLoopback(t, c, ftypes.ProtocolRpc, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return nil
	})

	c.Start()
	q := &query.Packet{Conn: mcConn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	_, err := c.SendRPC(rpcConn, "ghost", []byte("x"), time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, 1, c.pending.Count())
	gen := c.pool.Generation()
	_, slotEnd := c.slots.Window()

	c.Finish()

	assert.Equal(t, 0, c.pending.Count())
	assert.Equal(t, 0, c.events.Len())
	assert.Equal(t, 0, c.queries.Len())
	assert.False(t, c.slots.IsValid(slotEnd-1))
	assert.NotEqual(t, gen, c.pool.Generation())
	assert.False(t, c.Stats().Running)

	// Connections are worker-scoped and survive; the next execution runs
	// on a fresh generation.
	c.Start()
	defer c.Finish()
	q2 := &query.Packet{Conn: mcConn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q2))
	assert.True(t, q2.Answer.OK)
}

func TestAccountingSplit(t *testing.T) {
	mock := clock.NewMock()
	c := testContextClock(t, mock)
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return nil
	})

	c.Start()
	done := make(chan struct{})
	go func() {
		// Let the loop reach its blocking select before time moves.
		time.Sleep(50 * time.Millisecond)
		mock.Add(150 * time.Millisecond)
		close(done)
	}()
	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: 100 * time.Millisecond}
	require.NoError(t, c.Ask(q))
	<-done
	assert.Equal(t, "Timeout", q.Answer.Err)
	assert.Equal(t, 150*time.Millisecond, c.NetTime())
	assert.Equal(t, time.Duration(0), c.ScriptTime())

	mock.Add(10 * time.Millisecond)
	c.Finish()
	assert.Equal(t, 150*time.Millisecond, c.NetTime())
	assert.Equal(t, 10*time.Millisecond, c.ScriptTime())
}

func TestJournalEntries(t *testing.T) {
	broker := journal.NewMockBroker()
	scope := resource.NewWorkerScope(7)
	prod, err := journal.MockProducerConfig{Broker: &broker, Topic: "journal"}.Materialize(scope)
	require.NoError(t, err)
	c := CreateFromResources(Resources{
		Scope:    scope,
		Journal:  prod.(journal.Producer),
		EventCap: 64,
		QueryCap: 64,
	})
	t.Cleanup(func() { _ = c.Close() })
	conn := openLoopback(t, c, ftypes.ProtocolMemcache, func(_ *engine.Conn, _ engine.Submission) []engine.Completion {
		return []engine.Completion{{Op: engine.OpMCEnd}}
	})

	c.Start()
	q := &query.Packet{Conn: conn, Data: []byte("get k\r\n"), Protocol: ftypes.ProtocolMemcache, Timeout: time.Second}
	require.NoError(t, c.Ask(q))
	c.Finish()

	res, err := journal.MockConsumerConfig{Broker: &broker, Topic: "journal", GroupID: "readers"}.Materialize(scope)
	require.NoError(t, err)
	consumer := res.(journal.Consumer)
	defer consumer.Close()

	msgs, err := consumer.ReadBatch(context.Background(), 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	kind, err := jsonparser.GetString(msgs[0], "kind")
	require.NoError(t, err)
	assert.Equal(t, journal.KindQuery, kind)
	outcome, err := jsonparser.GetString(msgs[0], "outcome")
	require.NoError(t, err)
	assert.Equal(t, journal.OutcomeOK, outcome)
	protocol, err := jsonparser.GetString(msgs[0], "protocol")
	require.NoError(t, err)
	assert.Equal(t, "memcache", protocol)

	kind, err = jsonparser.GetString(msgs[1], "kind")
	require.NoError(t, err)
	assert.Equal(t, journal.KindSummary, kind)
	queries, err := jsonparser.GetInt(msgs[1], "queries")
	require.NoError(t, err)
	assert.EqualValues(t, 1, queries)
}

func TestConnectNoDriver(t *testing.T) {
	c := testContext(t)
	q := &query.Connect{Host: "h", Port: 1, Protocol: ftypes.ProtocolSql}
	require.NoError(t, c.Connect(q))
	assert.False(t, q.Answer.OK)
	assert.Contains(t, q.Answer.Err, "no driver")
}

func TestArgsValid(t *testing.T) {
	err := BridgeArgs{}.Valid()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_ID")

	err = BridgeArgs{WorkerID: 1, KafkaServer: "k:9092"}.Valid()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_USERNAME")
	assert.Contains(t, err.Error(), "KAFKA_PASSWORD")

	assert.NoError(t, BridgeArgs{WorkerID: 1}.Valid())
	assert.NoError(t, BridgeArgs{
		WorkerID:      1,
		KafkaServer:   "k:9092",
		KafkaUsername: "u",
		KafkaPassword: "p",
	}.Valid())
}
