package outbox

import (
	"encoding/json"
	"fmt"
)

// Entry describes a new outbox message to be staged.
type Entry struct {
	// EventType names the event schema and version (e.g.
	// "banking.withdrawal.performed.v1").
	EventType string
	// Payload is the serialized event body. Stored as JSON; only the
	// dispatcher's codec interprets it.
	Payload json.RawMessage
}

// NewEntry marshals v into an entry payload. A marshal failure here is a
// programmer error: the caller constructed an unserializable event.
func NewEntry(eventType string, v any) (Entry, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Entry{}, fmt.Errorf("outbox: marshal %s payload: %w", eventType, err)
	}

	return Entry{EventType: eventType, Payload: payload}, nil
}

// Validate checks required fields and JSON validity of the payload.
func (e Entry) Validate() error {
	if e.EventType == "" {
		return ErrEventTypeRequired
	}
	if len(e.Payload) == 0 {
		return ErrPayloadRequired
	}
	if !json.Valid(e.Payload) {
		return ErrInvalidPayload
	}

	return nil
}
