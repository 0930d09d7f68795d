package outbox

import (
	"context"

	"github.com/nikitakapustkin/bankevents/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// KafkaSender publishes outbox rows with a hash balancer so rows sharing a
// routing key land on the same partition.
type KafkaSender struct {
	writer   *kafka.Writer
	producer string
}

func NewKafkaSender(brokers []string, producer string) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.Hash{},
		},
		producer: producer,
	}
}

func (s *KafkaSender) Send(ctx context.Context, rec Record) error {
	var key []byte
	if rec.Key != "" {
		key = []byte(rec.Key)
	}
	headers := kafkax.MetaHeaders(kafkax.EventMeta{
		EventID:   rec.ID.String(),
		EventType: rec.EventType,
		Producer:  s.producer,
	})
	headers = kafkax.InjectTraceHeaders(ctx, headers)
	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic:   rec.Topic,
		Key:     key,
		Value:   rec.Payload,
		Headers: headers,
	})
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
