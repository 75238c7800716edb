package bank

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the bank account aggregate. Balance is decremented only after
// the handler confirmed sufficient funds, inside the same unit of work as
// the staged withdrawal event.
type Account struct {
	ID      uuid.UUID
	Balance decimal.Decimal
}

// AccountStore reads and writes accounts within the ambient unit of work.
type AccountStore interface {
	// GetByID loads an account, returning ErrAccountNotFound when missing.
	// Implementations backed by a transaction lock the row for update.
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)

	// Update stages the new account state in the ambient unit of work.
	Update(ctx context.Context, account Account) error
}
