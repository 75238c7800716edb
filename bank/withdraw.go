package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/velmie/withdrawal-service/outbox"
)

// WithdrawCommand debits an account and stages the corresponding integration
// event in the same unit of work.
type WithdrawCommand struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
}

// CommandName implements Command.
func (*WithdrawCommand) CommandName() string { return "withdraw" }

// Mutates marks the command as state-changing so the unit-of-work middleware
// commits it.
func (*WithdrawCommand) Mutates() {}

// WithdrawalResult is returned to the caller after a successful withdrawal.
// EventStatus reports the outbox stage only: the event is durably enqueued,
// not yet published.
type WithdrawalResult struct {
	AccountID       uuid.UUID       `json:"accountId"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	WithdrawnAmount decimal.Decimal `json:"withdrawnAmount"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	EventStatus     string          `json:"eventStatus"`
	TimestampUTC    time.Time       `json:"timestampUtc"`
}

// EventStatusEnqueued is the only event status a successful withdrawal
// reports. Delivery happens later, from the dispatcher.
const EventStatusEnqueued = "ENQUEUED"

// Service executes withdrawal commands through the standard pipeline:
// logging, validation, unit of work, handler.
type Service struct {
	pipeline *Pipeline
	clock    outbox.Clock
}

// NewService wires the command pipeline. Panics on nil dependencies.
func NewService(factory UnitOfWorkFactory, logger zerolog.Logger, limits Limits, clock outbox.Clock) *Service {
	if factory == nil {
		panic("bank: nil unit of work factory")
	}
	if clock == nil {
		clock = outbox.SystemClock{}
	}

	svc := &Service{clock: clock}
	svc.pipeline = NewPipeline(
		svc.handle,
		WithLogging(logger),
		WithValidation(NewRules(limits)),
		WithUnitOfWork(factory),
	)

	return svc
}

// Withdraw runs a withdrawal end to end and returns the committed result.
func (s *Service) Withdraw(ctx context.Context, cmd *WithdrawCommand) (WithdrawalResult, error) {
	out, err := s.pipeline.Execute(ctx, cmd)
	if err != nil {
		return WithdrawalResult{}, err
	}

	result, ok := out.(WithdrawalResult)
	if !ok {
		return WithdrawalResult{}, fmt.Errorf("unexpected withdraw result type %T", out)
	}

	return result, nil
}

// Execute runs any command through the pipeline. It exists for callers that
// compose their own commands; Withdraw is the typed entry point.
func (s *Service) Execute(ctx context.Context, cmd Command) (any, error) {
	return s.pipeline.Execute(ctx, cmd)
}

func (s *Service) handle(ctx context.Context, cmd Command) (any, error) {
	withdraw, ok := cmd.(*WithdrawCommand)
	if !ok {
		return nil, fmt.Errorf("no handler for command %q", cmd.CommandName())
	}

	return s.handleWithdraw(ctx, withdraw)
}

func (s *Service) handleWithdraw(ctx context.Context, cmd *WithdrawCommand) (any, error) {
	uow, err := UnitOfWorkFrom(ctx)
	if err != nil {
		return nil, err
	}

	account, err := uow.Accounts().GetByID(ctx, cmd.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, AccountNotFound(cmd.AccountID)
		}

		return nil, fmt.Errorf("load account: %w", err)
	}

	if account.Balance.LessThan(cmd.Amount) {
		return nil, InsufficientFunds(cmd.AccountID)
	}

	previous := account.Balance
	account.Balance = account.Balance.Sub(cmd.Amount)

	if err := uow.Accounts().Update(ctx, account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	now := s.clock.Now()
	event := WithdrawalPerformedEvent{
		EventID:         uuid.New(),
		AccountID:       account.ID,
		Amount:          cmd.Amount,
		PreviousBalance: previous,
		NewBalance:      account.Balance,
		OccurredUTC:     now,
	}

	entry, err := outbox.NewEntry(EventTypeWithdrawalPerformed, event)
	if err != nil {
		return nil, fmt.Errorf("build outbox entry: %w", err)
	}

	if _, err := uow.Outbox().Enqueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("enqueue withdrawal event: %w", err)
	}

	return WithdrawalResult{
		AccountID:       account.ID,
		PreviousBalance: previous,
		WithdrawnAmount: cmd.Amount,
		NewBalance:      account.Balance,
		EventStatus:     EventStatusEnqueued,
		TimestampUTC:    now,
	}, nil
}
