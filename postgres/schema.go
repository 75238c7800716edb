package postgres

import "fmt"

const schemaTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY,
	event_type VARCHAR(128) NOT NULL,
	payload JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ NULL,
	last_error VARCHAR(1024) NULL,
	CONSTRAINT %[1]s_state_exclusive CHECK (processed_at IS NULL OR last_error IS NULL)
);
CREATE INDEX IF NOT EXISTS %[1]s_pending_idx ON %[1]s (occurred_at) WHERE processed_at IS NULL AND last_error IS NULL;
CREATE INDEX IF NOT EXISTS %[1]s_failed_idx ON %[1]s (occurred_at) WHERE last_error IS NOT NULL;
CREATE INDEX IF NOT EXISTS %[1]s_processed_idx ON %[1]s (processed_at DESC) WHERE processed_at IS NOT NULL;`

const accountsSchemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	balance NUMERIC(19, 4) NOT NULL CHECK (balance >= 0)
);`

// Schema returns the DDL for an outbox table. Partial indexes match the three
// record states so fetches and counts never scan processed history.
func Schema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(schemaTemplate, name), nil
}

// AccountsSchema returns the DDL for the accounts table.
func AccountsSchema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(accountsSchemaTemplate, name), nil
}
