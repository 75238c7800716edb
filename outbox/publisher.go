package outbox

import (
	"context"
	"encoding/json"
)

// Message is a decoded outbox record ready for delivery to an external bus.
type Message struct {
	// EventType names the event schema and version.
	EventType string
	// Payload is the event body forwarded to the bus.
	Payload json.RawMessage
	// Subject is an optional human-readable summary.
	Subject string
	// Attributes carry bus-level metadata (headers, message attributes).
	Attributes map[string]string
}

// Publisher delivers one message to the external bus. Implementations must be
// safe to call with no ambient transaction. The dispatcher treats transient
// and permanent failures identically: the record is marked failed either way.
type Publisher interface {
	// Publish delivers msg and returns an error on failure.
	Publish(ctx context.Context, msg Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) error

// Publish implements Publisher.
func (fn PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return fn(ctx, msg)
}

// NewLogPublisher returns a publisher that only logs messages. It backs the
// "log" sink used for local development.
func NewLogPublisher(logger Logger) Publisher {
	return PublisherFunc(func(_ context.Context, msg Message) error {
		logger.Info("outbox message published to log sink",
			"event_type", msg.EventType,
			"payload_bytes", len(msg.Payload),
		)

		return nil
	})
}
