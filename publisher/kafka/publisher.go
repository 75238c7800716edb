// Package kafka publishes outbox messages to Kafka. Each event type maps to
// its own topic unless a fixed topic is configured.
package kafka

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/velmie/withdrawal-service/outbox"
)

// Config defines publisher behavior.
type Config struct {
	// Topic fixes the destination topic. Empty publishes each message to a
	// topic named after its event type.
	Topic string
	// KeyAttribute selects the message attribute used as the partition key.
	// Empty leaves messages unkeyed.
	KeyAttribute string
}

// Option configures the publisher.
type Option func(*Config)

// WithTopic fixes the destination topic for all messages.
func WithTopic(topic string) Option {
	return func(c *Config) {
		c.Topic = topic
	}
}

// WithKeyAttribute partitions messages by the named attribute, keeping
// events for the same key in order.
func WithKeyAttribute(attribute string) Option {
	return func(c *Config) {
		c.KeyAttribute = attribute
	}
}

// Publisher writes outbox messages to Kafka with full acknowledgement.
type Publisher struct {
	writer *kafkago.Writer
	cfg    Config
}

var _ outbox.Publisher = (*Publisher)(nil)

// NewPublisher constructs a publisher for the given brokers.
func NewPublisher(brokers []string, opts ...Option) *Publisher {
	if len(brokers) == 0 {
		panic("kafka: no brokers")
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
		},
		cfg: cfg,
	}
}

// Publish implements outbox.Publisher.
func (p *Publisher) Publish(ctx context.Context, msg outbox.Message) error {
	if err := p.writer.WriteMessages(ctx, p.buildMessage(msg)); err != nil {
		return fmt.Errorf("kafka: write message: %w", err)
	}

	return nil
}

// Close flushes buffered messages and releases connections.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) buildMessage(msg outbox.Message) kafkago.Message {
	out := kafkago.Message{
		Topic: p.cfg.Topic,
		Value: msg.Payload,
	}
	if out.Topic == "" {
		out.Topic = msg.EventType
	}
	if p.cfg.KeyAttribute != "" {
		if key, ok := msg.Attributes[p.cfg.KeyAttribute]; ok {
			out.Key = []byte(key)
		}
	}

	if msg.Subject != "" {
		out.Headers = append(out.Headers, kafkago.Header{Key: "Subject", Value: []byte(msg.Subject)})
	}
	for key, value := range msg.Attributes {
		out.Headers = append(out.Headers, kafkago.Header{Key: key, Value: []byte(value)})
	}

	return out
}
