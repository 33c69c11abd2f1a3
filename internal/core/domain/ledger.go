package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentEventType string

const (
	PaymentEventCreated  PaymentEventType = "CREATED"
	PaymentEventApproved PaymentEventType = "APPROVED"
	PaymentEventRejected PaymentEventType = "REJECTED"
)

// PaymentEvent is an immutable entry in a payment's ledger. It snapshots
// the payment at the time it was appended.
type PaymentEvent struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	Type       PaymentEventType
	PayerID    uuid.UUID
	PayeeID    uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Status     PaymentStatus
	Sequence   int64
	OccurredAt time.Time
}

type MerchantEventType string

const (
	MerchantEventRegistered      MerchantEventType = "REGISTERED"
	MerchantEventPaymentReceived MerchantEventType = "PAYMENT_RECEIVED"
	MerchantEventPaymentDebited  MerchantEventType = "PAYMENT_DEBITED"
)

// MerchantEvent is an immutable balance movement. NewBalance is the
// balance after the movement was applied.
type MerchantEvent struct {
	ID            uuid.UUID
	MerchantID    uuid.UUID
	Type          MerchantEventType
	Reference     string
	BalanceChange decimal.Decimal
	NewBalance    decimal.Decimal
	Currency      string
	Description   string
	Sequence      int64
	OccurredAt    time.Time
}

// FoldPaymentEvents replays a payment's history and returns the status it
// implies. The first event must be CREATED and at most one terminal event
// may follow it.
func FoldPaymentEvents(events []PaymentEvent) (PaymentStatus, error) {
	if len(events) == 0 {
		return "", NewInvalidHistoryError("no events")
	}

	var p *Payment
	for i, ev := range events {
		switch ev.Type {
		case PaymentEventCreated:
			if p != nil {
				return "", NewInvalidHistoryError(fmt.Sprintf("duplicate CREATED at position %d", i))
			}
			p = &Payment{ID: ev.PaymentID, Status: StatusPending}
		case PaymentEventApproved, PaymentEventRejected:
			if p == nil {
				return "", NewInvalidHistoryError(fmt.Sprintf("%s before CREATED", ev.Type))
			}
			var err error
			if ev.Type == PaymentEventApproved {
				err = p.Approve()
			} else {
				err = p.Reject()
			}
			if err != nil {
				return "", NewInvalidHistoryError(fmt.Sprintf("%s at position %d: %v", ev.Type, i, err))
			}
		default:
			return "", NewInvalidHistoryError(fmt.Sprintf("unknown event type %q", ev.Type))
		}
	}
	return p.Status, nil
}

// FoldMerchantEvents replays a merchant's balance movements and returns
// the resulting balance. Each event's NewBalance must match the running
// total.
func FoldMerchantEvents(events []MerchantEvent) (decimal.Decimal, error) {
	balance := decimal.Zero
	for i, ev := range events {
		switch ev.Type {
		case MerchantEventRegistered, MerchantEventPaymentReceived, MerchantEventPaymentDebited:
		default:
			return decimal.Zero, NewInvalidHistoryError(fmt.Sprintf("unknown event type %q", ev.Type))
		}
		balance = balance.Add(ev.BalanceChange)
		if !balance.Equal(ev.NewBalance) {
			return decimal.Zero, NewInvalidHistoryError(
				fmt.Sprintf("balance drift at position %d: expected %s, recorded %s", i, balance, ev.NewBalance),
			)
		}
	}
	return balance, nil
}
