package outbox

// Status represents the lifecycle state of an outbox record. Exactly one
// status holds for a record at any time.
type Status string

const (
	// StatusPending indicates the record is waiting to be dispatched.
	StatusPending Status = "pending"
	// StatusFailed indicates the most recent delivery attempt failed and the
	// record is parked until re-queued.
	StatusFailed Status = "failed"
	// StatusProcessed indicates the record was delivered and confirmed.
	StatusProcessed Status = "processed"
)
