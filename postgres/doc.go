// Package postgres provides the PostgreSQL-backed outbox store, account
// store, and unit of work. Outbox state lives in two nullable columns:
// a record is processed when processed_at is set, failed when last_error is
// set, and pending when both are null. Mark operations keep the two columns
// mutually exclusive in a single UPDATE.
package postgres
