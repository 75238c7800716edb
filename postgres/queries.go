package postgres

import "fmt"

type queries struct {
	insert               string
	selectPending        string
	selectFailed         string
	selectProcessed      string
	selectProcessedSince string
	markProcessed        string
	markFailed           string
	requeue              string
	selectState          string
	countPending         string
	countFailed          string
	deleteProcessed      string

	selectAccount string
	updateAccount string
	insertAccount string
}

func newQueries(table, accountsTable string) queries {
	cols := "id, event_type, payload, occurred_at, processed_at, last_error"

	return queries{
		insert: fmt.Sprintf(
			"INSERT INTO %s (id, event_type, payload, occurred_at) VALUES ($1, $2, $3, $4)",
			table,
		),
		selectPending: fmt.Sprintf(
			"SELECT %s FROM %s WHERE processed_at IS NULL AND last_error IS NULL ORDER BY occurred_at ASC, id ASC LIMIT $1",
			cols, table,
		),
		selectFailed: fmt.Sprintf(
			"SELECT %s FROM %s WHERE last_error IS NOT NULL ORDER BY occurred_at ASC, id ASC LIMIT $1",
			cols, table,
		),
		selectProcessed: fmt.Sprintf(
			"SELECT %s FROM %s WHERE processed_at IS NOT NULL ORDER BY processed_at DESC, id DESC LIMIT $1",
			cols, table,
		),
		selectProcessedSince: fmt.Sprintf(
			"SELECT %s FROM %s WHERE processed_at IS NOT NULL AND processed_at >= $1 ORDER BY processed_at DESC, id DESC LIMIT $2",
			cols, table,
		),
		markProcessed: fmt.Sprintf(
			"UPDATE %s SET processed_at = $1, last_error = NULL WHERE id = $2",
			table,
		),
		markFailed: fmt.Sprintf(
			"UPDATE %s SET last_error = $1, processed_at = NULL WHERE id = $2",
			table,
		),
		requeue: fmt.Sprintf(
			"UPDATE %s SET last_error = NULL WHERE id = $1 AND last_error IS NOT NULL",
			table,
		),
		selectState: fmt.Sprintf(
			"SELECT processed_at IS NOT NULL, last_error IS NOT NULL FROM %s WHERE id = $1",
			table,
		),
		countPending: fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE processed_at IS NULL AND last_error IS NULL",
			table,
		),
		countFailed: fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE last_error IS NOT NULL",
			table,
		),
		deleteProcessed: fmt.Sprintf(
			"DELETE FROM %s WHERE id IN (SELECT id FROM %s WHERE processed_at IS NOT NULL AND processed_at <= $1 ORDER BY processed_at ASC LIMIT $2)",
			table, table,
		),

		selectAccount: fmt.Sprintf(
			"SELECT id, balance::text FROM %s WHERE id = $1 FOR UPDATE",
			accountsTable,
		),
		updateAccount: fmt.Sprintf(
			"UPDATE %s SET balance = $1::numeric WHERE id = $2",
			accountsTable,
		),
		insertAccount: fmt.Sprintf(
			"INSERT INTO %s (id, balance) VALUES ($1, $2::numeric) ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance",
			accountsTable,
		),
	}
}
