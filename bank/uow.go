package bank

import (
	"context"
	"errors"

	"github.com/velmie/withdrawal-service/outbox"
)

// ErrNoUnitOfWork indicates a handler ran outside the unit-of-work
// middleware. This is a wiring bug, not a runtime condition.
var ErrNoUnitOfWork = errors.New("bank: no unit of work in context")

// UnitOfWork is the atomic commit boundary shared by the account mutation
// and the staged outbox record. Nothing staged through it is observable
// until Commit; Rollback discards the business mutation and the staged
// records together.
type UnitOfWork interface {
	// Accounts returns the account store bound to this unit of work.
	Accounts() AccountStore

	// Outbox returns the writer staging records into this unit of work.
	Outbox() outbox.Writer

	// Commit makes all staged changes durable atomically.
	Commit(ctx context.Context) error

	// Rollback discards all staged changes. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory begins a fresh unit of work per command.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

type uowContextKey struct{}

// ContextWithUnitOfWork binds uow as the ambient unit of work.
func ContextWithUnitOfWork(ctx context.Context, uow UnitOfWork) context.Context {
	return context.WithValue(ctx, uowContextKey{}, uow)
}

// UnitOfWorkFrom extracts the ambient unit of work.
func UnitOfWorkFrom(ctx context.Context) (UnitOfWork, error) {
	uow, ok := ctx.Value(uowContextKey{}).(UnitOfWork)
	if !ok {
		return nil, ErrNoUnitOfWork
	}

	return uow, nil
}
