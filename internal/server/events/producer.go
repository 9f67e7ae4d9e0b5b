package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes item events. A nil *Producer is valid and drops every
// event, so callers never need to branch on whether events are configured.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the given brokers. Returns nil when no
// brokers are configured.
func NewProducer(brokers []string) *Producer {
	if len(brokers) == 0 {
		return nil
	}

	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        Topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
	}
}

// Publish sends one event, keyed by item id.
func (p *Producer) Publish(ctx context.Context, event *ItemEvent) error {
	if p == nil {
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ItemID),
		Value: value,
		Time:  event.Timestamp,
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
