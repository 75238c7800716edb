package bank

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velmie/withdrawal-service/outbox"
)

// EventTypeWithdrawalPerformed identifies the withdrawal integration event.
// The suffix versions the payload contract, not the code.
const EventTypeWithdrawalPerformed = "banking.withdrawal.performed.v1"

// WithdrawalPerformedEvent is the integration event staged into the outbox
// alongside the balance mutation.
type WithdrawalPerformedEvent struct {
	EventID         uuid.UUID       `json:"eventId"`
	AccountID       uuid.UUID       `json:"accountId"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	OccurredUTC     time.Time       `json:"occurredUtc"`
}

// RegisterWithdrawalCodec teaches codec how to turn a stored withdrawal
// record into a transport message.
func RegisterWithdrawalCodec(codec *outbox.Codec) {
	codec.Register(EventTypeWithdrawalPerformed, decodeWithdrawalPerformed)
}

func decodeWithdrawalPerformed(record outbox.Record) (outbox.Message, error) {
	var event WithdrawalPerformedEvent
	if err := json.Unmarshal(record.Payload, &event); err != nil {
		return outbox.Message{}, fmt.Errorf("unmarshal withdrawal event: %w", err)
	}

	return outbox.Message{
		EventType: record.EventType,
		Payload:   record.Payload,
		Subject:   "Withdrawal Performed",
		Attributes: map[string]string{
			"EventType": "WithdrawalPerformed",
			"EventId":   event.EventID.String(),
			"AccountId": event.AccountID.String(),
			"Amount":    event.Amount.StringFixed(2),
		},
	}, nil
}
