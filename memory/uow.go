package memory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/velmie/withdrawal-service/bank"
	"github.com/velmie/withdrawal-service/outbox"
)

// ErrUnitOfWorkClosed reports a write against a committed or rolled-back
// unit of work.
var ErrUnitOfWorkClosed = errors.New("memory: unit of work is closed")

// Factory begins in-memory units of work over a shared Store.
type Factory struct {
	store *Store
}

// NewFactory constructs a unit-of-work factory bound to store.
func NewFactory(store *Store) *Factory {
	if store == nil {
		panic("memory: nil store")
	}

	return &Factory{store: store}
}

// Begin implements bank.UnitOfWorkFactory.
func (f *Factory) Begin(context.Context) (bank.UnitOfWork, error) {
	return &unitOfWork{
		store:    f.store,
		accounts: make(map[uuid.UUID]bank.Account),
	}, nil
}

// unitOfWork stages account updates and outbox records and applies them to
// the store in one locked section on Commit. Reads see staged writes first,
// then the committed state.
type unitOfWork struct {
	store    *Store
	accounts map[uuid.UUID]bank.Account
	staged   []*outbox.Record
	closed   bool
}

func (u *unitOfWork) Accounts() bank.AccountStore { return (*uowAccounts)(u) }

func (u *unitOfWork) Outbox() outbox.Writer {
	return outbox.WriterFunc(func(_ context.Context, entry outbox.Entry) (uuid.UUID, error) {
		if u.closed {
			return uuid.Nil, ErrUnitOfWorkClosed
		}
		if err := entry.Validate(); err != nil {
			return uuid.Nil, err
		}

		record := &outbox.Record{
			ID:         uuid.New(),
			EventType:  entry.EventType,
			Payload:    append([]byte(nil), entry.Payload...),
			OccurredAt: u.store.clock.Now().UTC(),
		}
		u.staged = append(u.staged, record)

		return record.ID, nil
	})
}

func (u *unitOfWork) Commit(context.Context) error {
	if u.closed {
		return ErrUnitOfWorkClosed
	}
	u.closed = true

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for id, account := range u.accounts {
		u.store.accounts[id] = account
	}
	for _, record := range u.staged {
		u.store.records[record.ID] = record
		u.store.order = append(u.store.order, record.ID)
	}

	return nil
}

// Rollback discards staged state. It is safe after Commit, mirroring the
// transactional stores.
func (u *unitOfWork) Rollback(context.Context) error {
	u.closed = true
	u.accounts = nil
	u.staged = nil

	return nil
}

type uowAccounts unitOfWork

func (a *uowAccounts) GetByID(ctx context.Context, id uuid.UUID) (bank.Account, error) {
	if account, ok := a.accounts[id]; ok {
		return account, nil
	}

	return a.store.GetByID(ctx, id)
}

func (a *uowAccounts) Update(_ context.Context, account bank.Account) error {
	if a.closed {
		return ErrUnitOfWorkClosed
	}
	a.accounts[account.ID] = account

	return nil
}
