package bank

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Limits bound a single withdrawal.
type Limits struct {
	// MinWithdrawal is the exclusive lower bound: an amount must be strictly
	// greater to be accepted.
	MinWithdrawal decimal.Decimal
	// MaxWithdrawal is the largest accepted amount, inclusive.
	MaxWithdrawal decimal.Decimal
}

// DefaultLimits returns the standard withdrawal bounds: more than 0.01 and
// at most 1,000,000 per request.
func DefaultLimits() Limits {
	return Limits{
		MinWithdrawal: decimal.New(1, -2),
		MaxWithdrawal: decimal.New(1_000_000, 0),
	}
}

// Rules validates commands before their handler runs.
type Rules struct {
	Limits Limits
}

// NewRules builds validation rules with the given limits.
func NewRules(limits Limits) Rules {
	return Rules{Limits: limits}
}

// Validate returns field-level failures for cmd, or nil when the command is
// well-formed. Commands without rules pass through untouched.
func (r Rules) Validate(cmd Command) []FieldError {
	switch c := cmd.(type) {
	case *WithdrawCommand:
		return r.validateWithdraw(c)
	default:
		return nil
	}
}

func (r Rules) validateWithdraw(cmd *WithdrawCommand) []FieldError {
	var fieldErrs []FieldError

	if cmd.AccountID == uuid.Nil {
		fieldErrs = append(fieldErrs, FieldError{
			Field:   "accountId",
			Message: "account id is required",
		})
	}

	if cmd.Amount.LessThanOrEqual(r.Limits.MinWithdrawal) {
		fieldErrs = append(fieldErrs, FieldError{
			Field:   "amount",
			Message: "amount must be greater than " + r.Limits.MinWithdrawal.String(),
		})
	} else if cmd.Amount.GreaterThan(r.Limits.MaxWithdrawal) {
		fieldErrs = append(fieldErrs, FieldError{
			Field:   "amount",
			Message: "amount must not exceed " + r.Limits.MaxWithdrawal.String(),
		})
	}

	return fieldErrs
}
