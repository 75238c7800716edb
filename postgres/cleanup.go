package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/velmie/withdrawal-service/outbox"
)

const (
	defaultCleanupLimit      = 10000
	defaultCleanupEvery      = time.Hour
	defaultCleanupLockPrefix = "outbox:cleanup:"
)

// CleanupOptions defines how processed records are deleted.
type CleanupOptions struct {
	// Before removes records processed at or before this timestamp (required).
	Before time.Time
	// Limit caps the number of rows deleted per call (0 uses the default).
	Limit int
}

// Cleanup deletes processed records older than opts.Before and reports the
// number of rows removed. Pending and failed records are never touched.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (int64, error) {
	if opts.Before.IsZero() {
		return 0, ErrCleanupBeforeRequired
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultCleanupLimit
	}
	if limit < 0 {
		return 0, ErrCleanupLimitInvalid
	}

	tag, err := s.pool.Exec(ctx, s.queries.deleteProcessed, opts.Before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("outbox postgres: cleanup delete failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CleanupMaintainerConfig controls periodic deletion of processed records.
type CleanupMaintainerConfig struct {
	// Retention removes records processed earlier than now-retention (required).
	Retention time.Duration
	// CheckEvery is the interval between cleanup runs.
	CheckEvery time.Duration
	// Limit caps the number of rows deleted per run (0 uses the default).
	Limit int
	// LockName is the advisory lock name. Defaults to outbox:cleanup:<table>.
	LockName string
	// Clock overrides the time source.
	Clock outbox.Clock
	// Logger receives warnings about cleanup failures.
	Logger outbox.Logger
}

// CleanupMaintainer periodically deletes old processed records. An advisory
// lock keeps concurrent maintainers from overlapping.
type CleanupMaintainer struct {
	store *Store
	cfg   CleanupMaintainerConfig
}

// NewCleanupMaintainer creates a cleanup maintainer with defaults applied.
func NewCleanupMaintainer(store *Store, cfg CleanupMaintainerConfig) (*CleanupMaintainer, error) {
	if store == nil {
		return nil, ErrPoolRequired
	}
	if cfg.Retention <= 0 {
		return nil, ErrCleanupRetentionInvalid
	}
	if cfg.Clock == nil {
		cfg.Clock = outbox.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = outbox.NopLogger{}
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultCleanupEvery
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultCleanupLimit
	}
	if cfg.Limit < 0 {
		return nil, ErrCleanupLimitInvalid
	}
	if cfg.LockName == "" {
		cfg.LockName = defaultCleanupLockPrefix + store.table
	}

	return &CleanupMaintainer{store: store, cfg: cfg}, nil
}

// Run deletes old processed records on a fixed interval until the context is
// canceled.
func (m *CleanupMaintainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckEvery)
	defer ticker.Stop()

	if _, err := m.Ensure(ctx); err != nil {
		m.cfg.Logger.Warn("outbox cleanup failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Ensure(ctx); err != nil {
				m.cfg.Logger.Warn("outbox cleanup failed", "err", err)
			}
		}
	}
}

// Ensure executes a single cleanup pass.
func (m *CleanupMaintainer) Ensure(ctx context.Context) (int64, error) {
	conn, err := m.store.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("outbox postgres: cleanup conn failed: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", m.cfg.LockName).Scan(&locked); err != nil {
		return 0, fmt.Errorf("outbox postgres: acquire cleanup lock failed: %w", err)
	}
	if !locked {
		m.cfg.Logger.Debug("outbox cleanup lock held by another session")

		return 0, nil
	}
	defer func() {
		var released bool
		if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock(hashtext($1))", m.cfg.LockName).Scan(&released); err != nil {
			m.cfg.Logger.Warn("outbox cleanup release lock failed", "err", err)
		}
	}()

	before := m.cfg.Clock.Now().Add(-m.cfg.Retention)

	return m.store.Cleanup(ctx, CleanupOptions{Before: before, Limit: m.cfg.Limit})
}
