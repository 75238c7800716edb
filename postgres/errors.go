package postgres

import "errors"

var (
	// ErrPoolRequired is returned when a nil connection pool is provided.
	ErrPoolRequired = errors.New("outbox postgres: pool is required")
	// ErrTxRequired is returned when enqueue is called with a nil transaction.
	ErrTxRequired = errors.New("outbox postgres: transaction is required")
	// ErrTableNameRequired is returned when a table name is empty.
	ErrTableNameRequired = errors.New("outbox postgres: table name is required")
	// ErrInvalidTableName is returned when a table name has disallowed characters.
	ErrInvalidTableName = errors.New("outbox postgres: invalid table name")
	// ErrCleanupBeforeRequired is returned when the cleanup cutoff is missing.
	ErrCleanupBeforeRequired = errors.New("outbox postgres: cleanup before time is required")
	// ErrCleanupLimitInvalid is returned when the cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("outbox postgres: cleanup limit must be non-negative")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("outbox postgres: cleanup retention must be positive")
)
