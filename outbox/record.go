package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is a stored outbox message.
//
// ProcessedAt and LastError are mutually exclusive: marking a record
// processed clears any prior error and marking it failed clears any prior
// processed timestamp. Stores enforce this on every transition.
type Record struct {
	ID          uuid.UUID
	EventType   string
	Payload     json.RawMessage
	OccurredAt  time.Time
	ProcessedAt *time.Time
	LastError   *string
}

// Status derives the lifecycle state from the nullable columns.
func (r Record) Status() Status {
	switch {
	case r.ProcessedAt != nil:
		return StatusProcessed
	case r.LastError != nil:
		return StatusFailed
	default:
		return StatusPending
	}
}
