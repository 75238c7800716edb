package outbox

import "errors"

var (
	// ErrEventTypeRequired is returned when Entry.EventType is empty.
	ErrEventTypeRequired = errors.New("outbox event type is required")
	// ErrPayloadRequired is returned when Entry.Payload is empty.
	ErrPayloadRequired = errors.New("outbox payload is required")
	// ErrInvalidPayload is returned when Entry.Payload is not valid JSON.
	ErrInvalidPayload = errors.New("outbox payload must be valid JSON")
	// ErrInvalidBatchSize indicates that the requested batch size is not positive.
	ErrInvalidBatchSize = errors.New("outbox batch size must be positive")
	// ErrUnknownEventType is returned by a Codec for an unregistered event type.
	ErrUnknownEventType = errors.New("outbox event type has no registered decoder")
	// ErrRecordNotFound is returned when a re-queue targets a missing record.
	ErrRecordNotFound = errors.New("outbox record not found")
	// ErrRecordNotFailed is returned when a re-queue targets a record that is
	// not in the failed state.
	ErrRecordNotFailed = errors.New("outbox record is not failed")
)
