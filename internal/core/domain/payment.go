// Package domain defines the payment and merchant models of the ledger.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusApproved PaymentStatus = "APPROVED"
	StatusRejected PaymentStatus = "REJECTED"
)

// Payment is the intent to move Amount from Payer to Payee.
type Payment struct {
	ID       uuid.UUID
	PayerID  uuid.UUID
	PayeeID  uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Status   PaymentStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPayment builds a payment with a fresh id. It is not validated until
// Initialize is called.
func NewPayment(payerID, payeeID uuid.UUID, amount decimal.Decimal, currency string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:        uuid.New(),
		PayerID:   payerID,
		PayeeID:   payeeID,
		Amount:    amount,
		Currency:  strings.ToUpper(strings.TrimSpace(currency)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the payment's invariants without touching its status.
func (p *Payment) Validate() error {
	if p.PayerID == uuid.Nil {
		return NewInvalidPaymentError("payer is required")
	}
	if p.PayeeID == uuid.Nil {
		return NewInvalidPaymentError("payee is required")
	}
	if p.PayerID == p.PayeeID {
		return NewInvalidPaymentError("payer and payee must differ")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return NewInvalidPaymentError("currency is required")
	}
	if !ValidCurrency(p.Currency) {
		return NewInvalidPaymentError("currency must be a three-letter code")
	}
	if !p.Amount.IsPositive() {
		return NewInvalidPaymentError("amount must be greater than zero")
	}
	if !WithinRange(p.Amount) {
		return NewInvalidPaymentError("amount is too large")
	}
	if err := ValidateAmount(p.Amount, p.Currency); err != nil {
		return NewInvalidPaymentError("amount exceeds currency precision")
	}
	return nil
}

// Initialize validates the payment and puts it in PENDING.
func (p *Payment) Initialize() error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Status = StatusPending
	return nil
}

// Approve moves a PENDING payment to APPROVED.
func (p *Payment) Approve() error {
	if p.Status != StatusPending {
		return NewInvalidStateError(p.Status, "approve")
	}
	p.Status = StatusApproved
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Reject moves a PENDING payment to REJECTED.
func (p *Payment) Reject() error {
	if p.Status != StatusPending {
		return NewInvalidStateError(p.Status, "reject")
	}
	p.Status = StatusRejected
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Clone returns a copy that can be mutated without affecting p.
func (p *Payment) Clone() *Payment {
	c := *p
	return &c
}
