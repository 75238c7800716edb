// Package memory provides in-memory implementations of the outbox store,
// the account store, and the unit of work. It backs tests and the demo mode
// of the service; nothing here survives a restart.
package memory
