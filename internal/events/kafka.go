package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// Topic carries completion events for downstream consumers (statements,
// notifications, reconciliation).
const Topic = "karta.transactions.completed"

// KafkaPublisher writes completion events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher constructs a publisher against the given brokers.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish serializes the event and writes it to the topic. Entries are keyed
// by destination account so per-account ordering is preserved.
func (p *KafkaPublisher) Publish(ctx context.Context, event TransactionCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ToID.String()),
		Value: data,
	})
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
