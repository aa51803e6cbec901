// Package broker publishes domain events to Kafka.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Message is a keyed event payload ready for publishing.
type Message struct {
	Key       string
	EventType string
	Value     []byte
}

// Publisher delivers messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes messages to a single Kafka topic.
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a producer for topic on brokers.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return &Producer{writer: writer, topic: topic, now: time.Now}
}

// Publish writes msg. Messages sharing a key land on the same partition, so events for one order stay ordered.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Value,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(msg.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("write message to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// LogPublisher logs events instead of sending them. Used when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher builds a publisher that only logs.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event at debug level.
func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.logger.Debug("domain event dropped (no broker configured)",
		zap.String("event_type", msg.EventType),
		zap.String("key", msg.Key),
		zap.Int("bytes", len(msg.Value)),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
