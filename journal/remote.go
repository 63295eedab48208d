package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"viaduct/lib/timer"
	"viaduct/resource"
)

const (
	SecurityProtocol = "SASL_SSL"
	SaslMechanism    = "PLAIN"
)

func configMap(server, username, password string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": server,
		"sasl.username":     username,
		"sasl.password":     password,
		"security.protocol": SecurityProtocol,
		"sasl.mechanisms":   SaslMechanism,
	}
}

//=================================
// Remote producer
//=================================

type RemoteProducer struct {
	topic string
	*kafka.Producer
	resource.Scope
}

var _ Producer = RemoteProducer{}

func (k RemoteProducer) Log(_ context.Context, value []byte, partitionKey []byte) error {
	msg := kafka.Message{
		Key:            partitionKey,
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Value:          value,
	}
	return k.Produce(&msg, nil)
}

func (k RemoteProducer) LogEntry(ctx context.Context, e Entry) error {
	defer timer.Start(k.ID(), "journal.log_entry").Stop()
	raw, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize journal entry: %v", err)
	}
	return k.Log(ctx, raw, e.PartitionKey())
}

func (k RemoteProducer) Flush(timeout time.Duration) error {
	if left := k.Producer.Flush(int(timeout.Milliseconds())); left > 0 {
		return fmt.Errorf("could not flush all messages, %d left unflushed", left)
	}
	return nil
}

func (k RemoteProducer) Close() error {
	if err := k.Flush(time.Second * 10); err != nil {
		return err
	}
	k.Producer.Close()
	return nil
}

func (k RemoteProducer) Type() resource.Type {
	return resource.KafkaProducer
}

type RemoteProducerConfig struct {
	Topic           string
	BootstrapServer string
	Username        string
	Password        string
}

var _ resource.Config = RemoteProducerConfig{}

func (conf RemoteProducerConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	configmap := configMap(conf.BootstrapServer, conf.Username, conf.Password)
	// Stats events only arrive when the interval is set.
	if err := configmap.SetKey("statistics.interval.ms", 10*1000); err != nil {
		return nil, err
	}
	producer, err := kafka.NewProducer(configmap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal producer for topic [%s]: %v", conf.Topic, err)
	}
	go RecordEvents(producer.Events())
	return RemoteProducer{scope.PrefixedName(conf.Topic), producer, scope}, nil
}

//=================================
// Remote consumer
//=================================

type RemoteConsumer struct {
	*kafka.Consumer
	topic   string
	groupID string
	resource.Scope
}

var _ Consumer = RemoteConsumer{}

func (k RemoteConsumer) Read(_ context.Context, timeout time.Duration) ([]byte, error) {
	kmsg, err := k.ReadMessage(timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to read msg from journal: %v", err)
	}
	return kmsg.Value, nil
}

func (k RemoteConsumer) ReadBatch(ctx context.Context, upto int, timeout time.Duration) ([][]byte, error) {
	ret := make([][]byte, 0, upto)
	deadline := time.Now().Add(timeout)
	for len(ret) < upto {
		left := time.Until(deadline)
		if left <= 0 || ctx.Err() != nil {
			break
		}
		kmsg, err := k.ReadMessage(left)
		if err != nil {
			break
		}
		ret = append(ret, kmsg.Value)
	}
	return ret, nil
}

func (k RemoteConsumer) Commit() error {
	_, err := k.Consumer.Commit()
	return err
}

// Backlog sums, across assigned partitions, the distance between the
// committed offset and the high watermark.
func (k RemoteConsumer) Backlog() (int, error) {
	assigned, err := k.Assignment()
	if err != nil {
		return 0, err
	}
	committed, err := k.Committed(assigned, int(time.Second.Milliseconds()))
	if err != nil {
		return 0, err
	}
	backlog := 0
	for _, tp := range committed {
		low, high, err := k.QueryWatermarkOffsets(*tp.Topic, tp.Partition, int(time.Second.Milliseconds()))
		if err != nil {
			return backlog, err
		}
		next := int64(tp.Offset)
		if tp.Offset == kafka.OffsetInvalid {
			next = low
		}
		backlog += int(high - next)
	}
	return backlog, nil
}

func (k RemoteConsumer) GroupID() string {
	return k.groupID
}

func (k RemoteConsumer) Close() error {
	return k.Consumer.Close()
}

func (k RemoteConsumer) Type() resource.Type {
	return resource.KafkaConsumer
}

type RemoteConsumerConfig struct {
	Topic           string
	BootstrapServer string
	Username        string
	Password        string
	GroupID         string
	OffsetPolicy    string
}

var _ resource.Config = RemoteConsumerConfig{}

func (conf RemoteConsumerConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	groupID := scope.PrefixedName(conf.GroupID)
	configmap := configMap(conf.BootstrapServer, conf.Username, conf.Password)
	if err := configmap.SetKey("group.id", groupID); err != nil {
		return nil, err
	}
	if err := configmap.SetKey("auto.offset.reset", conf.OffsetPolicy); err != nil {
		return nil, err
	}
	consumer, err := kafka.NewConsumer(configmap)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal consumer: %v", err)
	}
	topic := scope.PrefixedName(conf.Topic)
	if err = consumer.Subscribe(topic, nil); err != nil {
		return nil, fmt.Errorf("failed to subscribe to topic [%s]: %v", topic, err)
	}
	return RemoteConsumer{consumer, topic, groupID, scope}, nil
}
