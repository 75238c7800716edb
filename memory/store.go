package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velmie/withdrawal-service/bank"
	"github.com/velmie/withdrawal-service/outbox"
)

// Store keeps outbox records and accounts in process memory. Records preserve
// enqueue order, so fetches ordered by occurrence time are stable even when
// two records share a timestamp.
type Store struct {
	mu       sync.Mutex
	clock    outbox.Clock
	order    []uuid.UUID
	records  map[uuid.UUID]*outbox.Record
	accounts map[uuid.UUID]bank.Account
}

// NewStore constructs an empty store using clock for enqueue timestamps.
// A nil clock defaults to the system clock.
func NewStore(clock outbox.Clock) *Store {
	if clock == nil {
		clock = outbox.SystemClock{}
	}

	return &Store{
		clock:    clock,
		records:  make(map[uuid.UUID]*outbox.Record),
		accounts: make(map[uuid.UUID]bank.Account),
	}
}

// SeedAccount inserts or replaces an account outside any unit of work.
func (s *Store) SeedAccount(account bank.Account) {
	s.mu.Lock()
	s.accounts[account.ID] = account
	s.mu.Unlock()
}

// GetByID implements bank.AccountStore against the committed state.
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (bank.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return bank.Account{}, bank.ErrAccountNotFound
	}

	return account, nil
}

// Update implements bank.AccountStore against the committed state.
func (s *Store) Update(_ context.Context, account bank.Account) error {
	s.mu.Lock()
	s.accounts[account.ID] = account
	s.mu.Unlock()

	return nil
}

// Enqueue appends a pending record directly, outside any unit of work.
func (s *Store) Enqueue(_ context.Context, entry outbox.Entry) (uuid.UUID, error) {
	if err := entry.Validate(); err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := &outbox.Record{
		ID:         uuid.New(),
		EventType:  entry.EventType,
		Payload:    append([]byte(nil), entry.Payload...),
		OccurredAt: s.clock.Now().UTC(),
	}
	s.records[record.ID] = record
	s.order = append(s.order, record.ID)

	return record.ID, nil
}

// FetchPending implements outbox.Store.
func (s *Store) FetchPending(_ context.Context, limit int) ([]outbox.Record, error) {
	return s.fetchInOrder(limit, outbox.StatusPending)
}

// FetchFailed implements outbox.Store.
func (s *Store) FetchFailed(_ context.Context, limit int) ([]outbox.Record, error) {
	return s.fetchInOrder(limit, outbox.StatusFailed)
}

// FetchProcessed implements outbox.Store.
func (s *Store) FetchProcessed(_ context.Context, since *time.Time, limit int) ([]outbox.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", outbox.ErrInvalidBatchSize, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.Record
	for _, id := range s.order {
		record := s.records[id]
		if record.Status() != outbox.StatusProcessed {
			continue
		}
		if since != nil && record.ProcessedAt.Before(*since) {
			continue
		}
		out = append(out, cloneRecord(record))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProcessedAt.After(*out[j].ProcessedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// MarkProcessed implements outbox.Store. Missing records are a no-op.
func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil
	}

	at := processedAt.UTC()
	record.ProcessedAt = &at
	record.LastError = nil

	return nil
}

// MarkFailed implements outbox.Store. Missing records are a no-op.
func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil
	}

	record.LastError = &message
	record.ProcessedAt = nil

	return nil
}

// Requeue implements outbox.Store.
func (s *Store) Requeue(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return outbox.ErrRecordNotFound
	}
	if record.Status() != outbox.StatusFailed {
		return outbox.ErrRecordNotFailed
	}

	record.LastError = nil

	return nil
}

// CountPending implements outbox.Store.
func (s *Store) CountPending(context.Context) (int, error) {
	return s.count(outbox.StatusPending), nil
}

// CountFailed implements outbox.Store.
func (s *Store) CountFailed(context.Context) (int, error) {
	return s.count(outbox.StatusFailed), nil
}

// fetchInOrder returns records in OccurredAt ascending order. Commit order
// can differ from staging order when units of work race, so insertion order
// only breaks ties between equal timestamps.
func (s *Store) fetchInOrder(limit int, status outbox.Status) ([]outbox.Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", outbox.ErrInvalidBatchSize, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.Record
	for _, id := range s.order {
		record := s.records[id]
		if record.Status() != status {
			continue
		}
		out = append(out, cloneRecord(record))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *Store) count(status outbox.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, record := range s.records {
		if record.Status() == status {
			n++
		}
	}

	return n
}

func cloneRecord(record *outbox.Record) outbox.Record {
	out := *record
	out.Payload = append([]byte(nil), record.Payload...)
	if record.ProcessedAt != nil {
		at := *record.ProcessedAt
		out.ProcessedAt = &at
	}
	if record.LastError != nil {
		msg := *record.LastError
		out.LastError = &msg
	}

	return out
}
