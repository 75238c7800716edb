package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velmie/withdrawal-service/outbox"
)

const maxErrorLen = 1024

// Store implements the outbox store over a pgx connection pool. Enqueue runs
// inside a caller-provided transaction so the record commits atomically with
// the business mutation; everything else runs on the pool directly.
type Store struct {
	pool    *pgxpool.Pool
	cfg     Config
	queries queries
	table   string
}

var _ outbox.Store = (*Store)(nil)

// NewStore constructs a PostgreSQL store with validated configuration.
func NewStore(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	accountsTable, err := sanitizeTableName(cfg.AccountsTable)
	if err != nil {
		return nil, err
	}

	return &Store{
		pool:    pool,
		cfg:     cfg,
		queries: newQueries(table, accountsTable),
		table:   table,
	}, nil
}

// MustNewStore constructs a PostgreSQL store or panics on error.
func MustNewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	store, err := NewStore(pool, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Enqueue inserts a pending record inside tx with a fresh id and the current
// time as occurred_at, returning the assigned id.
func (s *Store) Enqueue(ctx context.Context, tx pgx.Tx, entry outbox.Entry) (uuid.UUID, error) {
	if tx == nil {
		return uuid.Nil, ErrTxRequired
	}
	if err := entry.Validate(); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	occurredAt := s.cfg.Clock.Now().UTC()

	if _, err := tx.Exec(ctx, s.queries.insert, id, entry.EventType, entry.Payload, occurredAt); err != nil {
		return uuid.Nil, fmt.Errorf("outbox postgres: insert failed: %w", err)
	}

	return id, nil
}

// FetchPending implements outbox.Store.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", outbox.ErrInvalidBatchSize, limit)
	}

	return s.selectRecords(ctx, s.queries.selectPending, limit)
}

// FetchFailed implements outbox.Store.
func (s *Store) FetchFailed(ctx context.Context, limit int) ([]outbox.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", outbox.ErrInvalidBatchSize, limit)
	}

	return s.selectRecords(ctx, s.queries.selectFailed, limit)
}

// FetchProcessed implements outbox.Store.
func (s *Store) FetchProcessed(ctx context.Context, since *time.Time, limit int) ([]outbox.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", outbox.ErrInvalidBatchSize, limit)
	}
	if since == nil {
		return s.selectRecords(ctx, s.queries.selectProcessed, limit)
	}

	return s.selectRecords(ctx, s.queries.selectProcessedSince, since.UTC(), limit)
}

func (s *Store) selectRecords(ctx context.Context, query string, args ...any) ([]outbox.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("outbox postgres: select failed: %w", err)
	}
	defer rows.Close()

	var records []outbox.Record
	for rows.Next() {
		var record outbox.Record
		if err := rows.Scan(
			&record.ID,
			&record.EventType,
			&record.Payload,
			&record.OccurredAt,
			&record.ProcessedAt,
			&record.LastError,
		); err != nil {
			return nil, fmt.Errorf("outbox postgres: scan failed: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox postgres: rows failed: %w", err)
	}

	return records, nil
}

// MarkProcessed implements outbox.Store. Missing records are a no-op.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	if _, err := s.pool.Exec(ctx, s.queries.markProcessed, processedAt.UTC(), id); err != nil {
		return fmt.Errorf("outbox postgres: mark processed failed: %w", err)
	}

	return nil
}

// MarkFailed implements outbox.Store. Missing records are a no-op.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	if _, err := s.pool.Exec(ctx, s.queries.markFailed, truncateError(message), id); err != nil {
		return fmt.Errorf("outbox postgres: mark failed failed: %w", err)
	}

	return nil
}

// Requeue implements outbox.Store. The guarded UPDATE only touches failed
// records; a miss is disambiguated with a follow-up state probe.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, s.queries.requeue, id)
	if err != nil {
		return fmt.Errorf("outbox postgres: requeue failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var processed, failed bool
	err = s.pool.QueryRow(ctx, s.queries.selectState, id).Scan(&processed, &failed)
	if errors.Is(err, pgx.ErrNoRows) {
		return outbox.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("outbox postgres: requeue state probe failed: %w", err)
	}

	return outbox.ErrRecordNotFailed
}

// CountPending implements outbox.Store.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	return s.count(ctx, s.queries.countPending)
}

// CountFailed implements outbox.Store.
func (s *Store) CountFailed(ctx context.Context) (int, error) {
	return s.count(ctx, s.queries.countFailed)
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("outbox postgres: count failed: %w", err)
	}

	return n, nil
}

func truncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= maxErrorLen {
		return msg
	}

	runes := []rune(msg)

	return string(runes[:maxErrorLen])
}
