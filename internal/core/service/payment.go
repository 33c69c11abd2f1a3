package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreatePaymentCommand struct {
	PayerID  uuid.UUID
	PayeeID  uuid.UUID
	Amount   decimal.Decimal
	Currency string
}

// PaymentService is the intake path: it validates a payment, stores it with
// its CREATED ledger entry and announces it on the bus.
type PaymentService struct {
	store     ports.PaymentStore
	publisher ports.EventPublisher
	logger    *slog.Logger
}

func NewPaymentService(store ports.PaymentStore, publisher ports.EventPublisher, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *PaymentService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (*domain.Payment, error) {
	payment := domain.NewPayment(cmd.PayerID, cmd.PayeeID, cmd.Amount, cmd.Currency)
	if err := payment.Initialize(); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx ports.PaymentStore) error {
		if err := tx.Payments().CreatePayment(ctx, payment); err != nil {
			return err
		}
		if _, err := tx.Ledger().AppendCreated(ctx, payment); err != nil {
			return fmt.Errorf("append created event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.logger.Info("payment created",
		"payment_id", payment.ID,
		"payer_id", payment.PayerID,
		"payee_id", payment.PayeeID,
		"amount", payment.Amount.String(),
		"currency", payment.Currency,
	)

	// The payment is committed at this point. A lost announcement is
	// recovered by the stale payment reconciler.
	if err := s.Announce(ctx, payment); err != nil {
		s.logger.Error("failed to publish payment created",
			"payment_id", payment.ID,
			"error", err,
		)
	}

	return payment, nil
}

// Announce publishes the payment-created notification for p.
func (s *PaymentService) Announce(ctx context.Context, p *domain.Payment) error {
	return s.publisher.Publish(ctx, domain.TopicPaymentCreated, p.ID.String(), domain.NewPaymentCreatedEvent(p))
}
