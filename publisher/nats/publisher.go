// Package nats publishes outbox messages to NATS subjects derived from the
// event type.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/velmie/withdrawal-service/outbox"
)

// Publisher writes outbox messages to NATS. The subject is the configured
// prefix joined with the event type, e.g. "events.banking.withdrawal.performed.v1".
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

var _ outbox.Publisher = (*Publisher)(nil)

// NewPublisher constructs a publisher over an established connection.
func NewPublisher(conn *nats.Conn, subjectPrefix string) *Publisher {
	if conn == nil {
		panic("nats: nil connection")
	}

	return &Publisher{conn: conn, prefix: subjectPrefix}
}

// Publish implements outbox.Publisher.
func (p *Publisher) Publish(ctx context.Context, msg outbox.Message) error {
	out := &nats.Msg{
		Subject: SubjectFor(p.prefix, msg.EventType),
		Data:    msg.Payload,
		Header:  nats.Header{},
	}
	if msg.Subject != "" {
		out.Header.Set("Subject", msg.Subject)
	}
	for key, value := range msg.Attributes {
		out.Header.Set(key, value)
	}

	if err := p.conn.PublishMsg(out); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}

	// PublishMsg only buffers; flush within the caller's deadline so a dead
	// server surfaces as a failed record instead of silent loss.
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}

	return nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// SubjectFor joins a prefix with an event type into a NATS subject.
func SubjectFor(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}

	return prefix + "." + eventType
}
