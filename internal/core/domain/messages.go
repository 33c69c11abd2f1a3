package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Topics on the event bus. Messages are keyed by payment id.
const (
	TopicPaymentCreated   = "payment-created"
	TopicPaymentCompleted = "payment-completed"
	TopicPaymentProcessed = "payment-processed"
)

// PaymentCreatedEvent announces a new PENDING payment and triggers the saga.
type PaymentCreatedEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	PayerID    uuid.UUID       `json:"payer_id"`
	PayeeID    uuid.UUID       `json:"payee_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     PaymentStatus   `json:"status"`
}

// PaymentCompletedEvent tells the payee side that the payer was debited.
type PaymentCompletedEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	PayerID    uuid.UUID       `json:"payer_id"`
	PayeeID    uuid.UUID       `json:"payee_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     PaymentStatus   `json:"status"`
}

// PaymentProcessedEvent reports the terminal outcome of a saga run.
type PaymentProcessedEvent struct {
	EventID     uuid.UUID       `json:"event_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	PaymentID   uuid.UUID       `json:"payment_id"`
	PayerID     uuid.UUID       `json:"payer_id"`
	PayeeID     uuid.UUID       `json:"payee_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      PaymentStatus   `json:"status"`
	Description string          `json:"description"`
}

func NewPaymentCreatedEvent(p *Payment) PaymentCreatedEvent {
	return PaymentCreatedEvent{
		EventID:    uuid.New(),
		OccurredAt: time.Now().UTC(),
		PaymentID:  p.ID,
		PayerID:    p.PayerID,
		PayeeID:    p.PayeeID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status,
	}
}

func NewPaymentCompletedEvent(p *Payment) PaymentCompletedEvent {
	return PaymentCompletedEvent{
		EventID:    uuid.New(),
		OccurredAt: time.Now().UTC(),
		PaymentID:  p.ID,
		PayerID:    p.PayerID,
		PayeeID:    p.PayeeID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     StatusApproved,
	}
}

func NewPaymentProcessedEvent(p *Payment, description string) PaymentProcessedEvent {
	return PaymentProcessedEvent{
		EventID:     uuid.New(),
		OccurredAt:  time.Now().UTC(),
		PaymentID:   p.ID,
		PayerID:     p.PayerID,
		PayeeID:     p.PayeeID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      p.Status,
		Description: description,
	}
}

// BalanceRequest is a debit or credit against one account. Reference is
// stable across retries of the same logical operation.
type BalanceRequest struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Reference string
	// ReversedBy names the credit that undoes this debit. A debit is
	// refused once that credit has been applied.
	ReversedBy string
}

// Saga step references. The collaborator uses them to recognise a
// repeated request.
func DebitReference(paymentID uuid.UUID) string  { return "payment:" + paymentID.String() + ":debit" }
func RefundReference(paymentID uuid.UUID) string { return "payment:" + paymentID.String() + ":refund" }
func CreditReference(paymentID uuid.UUID) string { return "payment:" + paymentID.String() + ":credit" }
