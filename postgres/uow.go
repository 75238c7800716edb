package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/velmie/withdrawal-service/bank"
	"github.com/velmie/withdrawal-service/outbox"
)

// Factory begins PostgreSQL units of work: one transaction per command, with
// the account row locked for the duration and the outbox record inserted
// through the same transaction.
type Factory struct {
	pool  *pgxpool.Pool
	store *Store
}

var _ bank.UnitOfWorkFactory = (*Factory)(nil)

// NewFactory constructs a unit-of-work factory sharing the store's pool and
// table configuration.
func NewFactory(pool *pgxpool.Pool, store *Store) (*Factory, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	if store == nil {
		return nil, errors.New("outbox postgres: store is required")
	}

	return &Factory{pool: pool, store: store}, nil
}

// Begin implements bank.UnitOfWorkFactory.
func (f *Factory) Begin(ctx context.Context) (bank.UnitOfWork, error) {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("outbox postgres: begin tx failed: %w", err)
	}

	return &unitOfWork{tx: tx, store: f.store}, nil
}

type unitOfWork struct {
	tx    pgx.Tx
	store *Store
}

func (u *unitOfWork) Accounts() bank.AccountStore {
	return &txAccounts{tx: u.tx, queries: u.store.queries}
}

func (u *unitOfWork) Outbox() outbox.Writer {
	return outbox.WriterFunc(func(ctx context.Context, entry outbox.Entry) (uuid.UUID, error) {
		return u.store.Enqueue(ctx, u.tx, entry)
	})
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("outbox postgres: commit failed: %w", err)
	}

	return nil
}

// Rollback releases the transaction. A transaction already closed by Commit
// is not an error, so callers may defer Rollback unconditionally.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}

	return fmt.Errorf("outbox postgres: rollback failed: %w", err)
}

// txAccounts reads and writes accounts through the owning transaction.
// GetByID locks the row, serializing concurrent withdrawals per account.
type txAccounts struct {
	tx      pgx.Tx
	queries queries
}

func (a *txAccounts) GetByID(ctx context.Context, id uuid.UUID) (bank.Account, error) {
	var (
		account     bank.Account
		balanceText string
	)

	err := a.tx.QueryRow(ctx, a.queries.selectAccount, id).Scan(&account.ID, &balanceText)
	if errors.Is(err, pgx.ErrNoRows) {
		return bank.Account{}, bank.ErrAccountNotFound
	}
	if err != nil {
		return bank.Account{}, fmt.Errorf("outbox postgres: select account failed: %w", err)
	}

	account.Balance, err = decimal.NewFromString(balanceText)
	if err != nil {
		return bank.Account{}, fmt.Errorf("outbox postgres: parse balance failed: %w", err)
	}

	return account, nil
}

func (a *txAccounts) Update(ctx context.Context, account bank.Account) error {
	tag, err := a.tx.Exec(ctx, a.queries.updateAccount, account.Balance.String(), account.ID)
	if err != nil {
		return fmt.Errorf("outbox postgres: update account failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bank.ErrAccountNotFound
	}

	return nil
}

// UpsertAccount inserts or replaces an account outside any unit of work.
// Intended for seeding and tests.
func (s *Store) UpsertAccount(ctx context.Context, account bank.Account) error {
	if _, err := s.pool.Exec(ctx, s.queries.insertAccount, account.ID, account.Balance.String()); err != nil {
		return fmt.Errorf("outbox postgres: upsert account failed: %w", err)
	}

	return nil
}
