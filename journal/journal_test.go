package journal

import (
	"context"
	"testing"
	"time"

	"github.com/buger/jsonparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viaduct/resource"
)

func testPair(t *testing.T, broker *MockBroker, group string) (Producer, Consumer) {
	scope := resource.NewWorkerScope(1)
	p, err := MockProducerConfig{Broker: broker, Topic: "journal"}.Materialize(scope)
	require.NoError(t, err)
	c, err := MockConsumerConfig{Broker: broker, Topic: "journal", GroupID: group}.Materialize(scope)
	require.NoError(t, err)
	return p.(Producer), c.(Consumer)
}

func TestEntryRoundTrip(t *testing.T) {
	broker := NewMockBroker()
	producer, consumer := testPair(t, &broker, "readers")

	entry := Entry{
		Kind:     KindQuery,
		At:       1700000000000000,
		Worker:   1,
		Slot:     17,
		Conn:     2,
		Protocol: "memcache",
		Outcome:  OutcomeOK,
		Bytes:    42,
		Micros:   120,
	}
	require.NoError(t, producer.LogEntry(context.Background(), entry))

	raw, err := consumer.Read(context.Background(), time.Second)
	require.NoError(t, err)

	kind, err := jsonparser.GetString(raw, "kind")
	require.NoError(t, err)
	assert.Equal(t, KindQuery, kind)
	slot, err := jsonparser.GetInt(raw, "slot")
	require.NoError(t, err)
	assert.EqualValues(t, 17, slot)
	outcome, err := jsonparser.GetString(raw, "outcome")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)

	// Zero fields stay off the wire.
	_, err = jsonparser.GetString(raw, "error")
	assert.Error(t, err)
}

func TestBacklogAndCommit(t *testing.T) {
	broker := NewMockBroker()
	producer, consumer := testPair(t, &broker, "readers")

	for i := 0; i < 3; i++ {
		require.NoError(t, producer.Log(context.Background(), []byte{byte('a' + i)}, nil))
	}
	backlog, err := consumer.Backlog()
	require.NoError(t, err)
	assert.Equal(t, 3, backlog)

	msgs, err := consumer.ReadBatch(context.Background(), 100, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{'a'}, {'b'}, {'c'}}, msgs)

	require.NoError(t, consumer.Commit())
	backlog, err = consumer.Backlog()
	require.NoError(t, err)
	assert.Equal(t, 0, backlog)
}

func TestGroupsReadIndependently(t *testing.T) {
	broker := NewMockBroker()
	producer, first := testPair(t, &broker, "first")
	_, second := testPair(t, &broker, "second")

	require.NoError(t, producer.Log(context.Background(), []byte("only"), nil))

	got, err := first.Read(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("only"), got)

	// The other group still sees the message.
	got, err = second.Read(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("only"), got)

	// But the first one is drained now.
	_, err = first.Read(context.Background(), 20*time.Millisecond)
	assert.Error(t, err)
}

func TestReadTimesOut(t *testing.T) {
	broker := NewMockBroker()
	_, consumer := testPair(t, &broker, "readers")

	start := time.Now()
	_, err := consumer.Read(context.Background(), 30*time.Millisecond)
	assert.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestReadHonorsContext(t *testing.T) {
	broker := NewMockBroker()
	_, consumer := testPair(t, &broker, "readers")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := consumer.Read(ctx, time.Minute)
	assert.Error(t, err)
}

func TestScopePrefixesGroup(t *testing.T) {
	broker := NewMockBroker()
	_, consumer := testPair(t, &broker, "readers")
	assert.Equal(t, "w_1_readers", consumer.GroupID())
}
