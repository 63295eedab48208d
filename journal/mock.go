package journal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/detailyang/fastrand-go"

	"viaduct/resource"
)

/*
	This file defines mock producer/consumers relying on a mock in-memory
	broker that has no notion of partitions. As a result, there are no
	partition re-assignments and the commit bookkeeping is a single offset
	per group.
*/

type MockBroker struct {
	id      string
	msgs    [][]byte
	nexts   map[string]int
	commits map[string]int
	mutex   sync.Mutex
}

func NewMockBroker() MockBroker {
	return MockBroker{
		id:      strconv.FormatUint(uint64(fastrand.FastRand()), 16),
		msgs:    make([][]byte, 0),
		nexts:   make(map[string]int),
		commits: make(map[string]int),
	}
}

func (l *MockBroker) InitConsumer(groupID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.nexts[groupID] = 0
}

func (l *MockBroker) Log(msg []byte) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *MockBroker) Read(groupID string) ([]byte, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	nxt := l.nexts[groupID]
	if nxt >= len(l.msgs) {
		return nil, fmt.Errorf("no new messages")
	}
	l.nexts[groupID] = nxt + 1
	return l.msgs[nxt], nil
}

func (l *MockBroker) Backlog(groupID string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if offset, ok := l.commits[groupID]; !ok {
		return len(l.msgs)
	} else {
		return (len(l.msgs) - 1) - offset
	}
}

func (l *MockBroker) Commit(groupID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.commits[groupID] = l.nexts[groupID] - 1
}

func (l *MockBroker) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.msgs)
}

//=================================
// Mock producer (for tests)
//=================================

type mockProducer struct {
	resource.Scope
	topic  string
	broker *MockBroker
}

var _ Producer = mockProducer{}

func (l mockProducer) Log(_ context.Context, value []byte, _ []byte) error {
	l.broker.Log(value)
	return nil
}

func (l mockProducer) LogEntry(ctx context.Context, e Entry) error {
	raw, err := e.Marshal()
	if err != nil {
		return err
	}
	return l.Log(ctx, raw, e.PartitionKey())
}

func (l mockProducer) Flush(_ time.Duration) error {
	return nil
}

func (l mockProducer) Close() error {
	return nil
}

func (l mockProducer) Type() resource.Type {
	return resource.KafkaProducer
}

type MockProducerConfig struct {
	Broker *MockBroker
	Topic  string
}

var _ resource.Config = MockProducerConfig{}

func (conf MockProducerConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	topic := scope.PrefixedName(conf.Topic)
	return mockProducer{scope, topic, conf.Broker}, nil
}

//=================================
// Mock consumer (for tests)
//=================================

type mockConsumer struct {
	resource.Scope
	groupID string
	topic   string
	broker  *MockBroker
}

var _ Consumer = mockConsumer{}

func (l mockConsumer) Read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	ticker := time.Tick(timeout) //nolint
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled - no new messages to read")
		case <-ticker:
			return nil, fmt.Errorf("timeout - no new messages to read")
		default:
			ser, err := l.broker.Read(l.groupID)
			if err == nil {
				return ser, nil
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (l mockConsumer) ReadBatch(ctx context.Context, upto int, timeout time.Duration) ([][]byte, error) {
	ret := make([][]byte, 0)
	ticker := time.Tick(timeout) //nolint
	for len(ret) < upto {
		select {
		case <-ctx.Done():
			return ret, nil
		case <-ticker:
			return ret, nil
		default:
			msg, err := l.broker.Read(l.groupID)
			if err == nil {
				ret = append(ret, msg)
			} else {
				time.Sleep(10 * time.Millisecond)
			}
		}
	}
	return ret, nil
}

func (l mockConsumer) Commit() error {
	l.broker.Commit(l.groupID)
	return nil
}

func (l mockConsumer) Backlog() (int, error) {
	return l.broker.Backlog(l.groupID), nil
}

func (l mockConsumer) GroupID() string {
	return l.groupID
}

func (l mockConsumer) Close() error {
	return nil
}

func (l mockConsumer) Type() resource.Type {
	return resource.KafkaConsumer
}

type MockConsumerConfig struct {
	Broker  *MockBroker
	Topic   string
	GroupID string
}

var _ resource.Config = MockConsumerConfig{}

func (conf MockConsumerConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	topic := scope.PrefixedName(conf.Topic)
	groupID := scope.PrefixedName(conf.GroupID)
	conf.Broker.InitConsumer(groupID)
	return mockConsumer{scope, groupID, topic, conf.Broker}, nil
}
