package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Writer stages a new outbox record into the ambient unit of work. The
// staged record becomes durable only when that unit of work commits; nothing
// is observable before then.
type Writer interface {
	// Enqueue stages entry as a pending record with a fresh id and
	// occurredAt set to the current time, returning the assigned id.
	Enqueue(ctx context.Context, entry Entry) (uuid.UUID, error)
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, entry Entry) (uuid.UUID, error)

// Enqueue implements Writer.
func (f WriterFunc) Enqueue(ctx context.Context, entry Entry) (uuid.UUID, error) {
	return f(ctx, entry)
}

// Store is the durable log of outbox records and the single source of truth
// for delivery state. Mark operations apply each transition atomically and
// keep ProcessedAt and LastError mutually exclusive.
type Store interface {
	// FetchPending returns up to limit pending records ordered by OccurredAt
	// ascending, oldest first.
	FetchPending(ctx context.Context, limit int) ([]Record, error)

	// FetchFailed returns up to limit failed records ordered by OccurredAt
	// ascending.
	FetchFailed(ctx context.Context, limit int) ([]Record, error)

	// FetchProcessed returns up to limit processed records ordered by
	// ProcessedAt descending. A non-nil since restricts to records processed
	// at or after that time.
	FetchProcessed(ctx context.Context, since *time.Time, limit int) ([]Record, error)

	// MarkProcessed sets ProcessedAt and clears LastError. Marking a record
	// that no longer exists is a no-op, not an error.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// MarkFailed sets LastError and clears ProcessedAt. Marking a record
	// that no longer exists is a no-op, not an error.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error

	// Requeue clears LastError on a failed record, returning it to the
	// pending state. Returns ErrRecordNotFound for a missing record and
	// ErrRecordNotFailed for a record in any other state.
	Requeue(ctx context.Context, id uuid.UUID) error

	// CountPending returns the number of pending records.
	CountPending(ctx context.Context) (int, error)

	// CountFailed returns the number of failed records.
	CountFailed(ctx context.Context) (int, error)
}
