package outbox

import (
	"fmt"
	"sync"
)

// DecodeFunc turns a stored record into a publishable message.
type DecodeFunc func(record Record) (Message, error)

// Codec maps event types to decoders. A record whose event type has no
// registered decoder is a data or versioning problem: the dispatcher marks it
// failed and moves on, it never kills the loop.
type Codec struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

// NewCodec constructs an empty codec.
func NewCodec() *Codec {
	return &Codec{decoders: make(map[string]DecodeFunc)}
}

// Register binds a decoder to an event type, replacing any previous binding.
func (c *Codec) Register(eventType string, fn DecodeFunc) {
	if eventType == "" {
		panic("outbox: empty event type")
	}
	if fn == nil {
		panic("outbox: nil decoder")
	}

	c.mu.Lock()
	c.decoders[eventType] = fn
	c.mu.Unlock()
}

// Decode resolves the record's decoder and applies it.
func (c *Codec) Decode(record Record) (Message, error) {
	c.mu.RLock()
	fn, ok := c.decoders[record.EventType]
	c.mu.RUnlock()

	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownEventType, record.EventType)
	}

	return fn(record)
}
