package journal

import (
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
)

func extractString(unk interface{}) string {
	switch i := unk.(type) {
	case string:
		return i
	default:
		zap.L().Warn("type conversion not implemented", zap.Any("value", i))
	}
	return ""
}

func extractValue(unk interface{}) float64 {
	switch i := unk.(type) {
	case float64:
		return i
	case int:
		return float64(i)
	default:
		zap.L().Warn("type conversion not implemented", zap.Any("value", i))
	}
	return 0
}

// RecordEvents drains a producer's event channel, logging failed deliveries
// and feeding librdkafka's periodic stats into the producer gauge.
func RecordEvents(eventCh chan kafka.Event) {
	for ev := range eventCh {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				deliveryFailures.Inc()
				zap.L().Error("journal send failed", zap.String("event", e.String()))
			}
		case *kafka.Stats:
			// the stats are reported as string jsons
			var raw map[string]interface{}
			if err := json.Unmarshal([]byte(e.String()), &raw); err != nil {
				zap.L().Warn("failed to parse producer stats", zap.String("stats", e.String()))
				continue
			}
			// https://github.com/edenhill/librdkafka/blob/master/STATISTICS.md
			// Current number of messages in producer queues
			producerGauge.WithLabelValues(extractString(raw["name"]), "msg_cnt").Set(extractValue(raw["msg_cnt"]))
			// Threshold: maximum number of messages allowed on the producer queues
			producerGauge.WithLabelValues(extractString(raw["name"]), "msg_max").Set(extractValue(raw["msg_max"]))
			// Current total size of messages in producer queues
			producerGauge.WithLabelValues(extractString(raw["name"]), "msg_size").Set(extractValue(raw["msg_size"]))
			// Threshold: maximum total size of messages allowed on the producer queues
			producerGauge.WithLabelValues(extractString(raw["name"]), "msg_size_max").Set(extractValue(raw["msg_size_max"]))
		default:
			// not required
		}
	}
}
