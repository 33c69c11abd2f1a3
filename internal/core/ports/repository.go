package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/google/uuid"
)

// PaymentRepository holds the current projection of each payment.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	UpdatePayment(ctx context.Context, payment *domain.Payment) error
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)
}

// PaymentLedger is the append-only event series of each payment.
// Approved and rejected entries snapshot the payment as stored when the
// entry is appended.
type PaymentLedger interface {
	AppendCreated(ctx context.Context, payment *domain.Payment) (*domain.PaymentEvent, error)
	AppendApproved(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error)
	AppendRejected(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error)
	HistoryFor(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentEvent, error)
	HistoryForParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.PaymentEvent, error)
}

// PaymentStore groups the payment projection and ledger so both can be
// written in one transaction.
type PaymentStore interface {
	Payments() PaymentRepository
	Ledger() PaymentLedger

	// WithTx executes a function within a database transaction.
	WithTx(ctx context.Context, fn func(PaymentStore) error) error
}

type MerchantRepository interface {
	CreateMerchant(ctx context.Context, merchant *domain.Merchant) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	UpdateMerchant(ctx context.Context, merchant *domain.Merchant) error
}

type MerchantLedger interface {
	Append(ctx context.Context, event *domain.MerchantEvent) error
	HistoryFor(ctx context.Context, merchantID uuid.UUID) ([]domain.MerchantEvent, error)
	HasReference(ctx context.Context, merchantID uuid.UUID, eventType domain.MerchantEventType, reference string) (bool, error)
}

type MerchantStore interface {
	Merchants() MerchantRepository
	Ledger() MerchantLedger
	WithTx(ctx context.Context, fn func(MerchantStore) error) error
}
