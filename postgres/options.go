package postgres

import "github.com/velmie/withdrawal-service/outbox"

const (
	defaultTable         = "outbox_events"
	defaultAccountsTable = "bank_accounts"
)

// Config defines PostgreSQL store behavior.
type Config struct {
	Table         string
	AccountsTable string
	Clock         outbox.Clock
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.AccountsTable == "" {
		c.AccountsTable = defaultAccountsTable
	}
	if c.Clock == nil {
		c.Clock = outbox.SystemClock{}
	}

	return c
}

// Option configures the PostgreSQL store.
type Option func(*Config)

// WithTable sets the outbox table name.
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// WithAccountsTable sets the accounts table name.
func WithAccountsTable(name string) Option {
	return func(c *Config) {
		c.AccountsTable = name
	}
}

// WithClock sets the time source used for enqueue timestamps.
func WithClock(clock outbox.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}
