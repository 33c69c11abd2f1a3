package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
)

// SagaOutcome describes how a saga run ended.
type SagaOutcome string

const (
	OutcomeApproved    SagaOutcome = "APPROVED"
	OutcomeRejected    SagaOutcome = "REJECTED"
	OutcomeCompensated SagaOutcome = "COMPENSATED"
	OutcomeSkipped     SagaOutcome = "SKIPPED"
)

// PaymentSaga drives a PENDING payment to a terminal status: debit the
// payer, announce completion, finalize. Any failure after the debit refunds
// the payer before the payment is rejected.
type PaymentSaga struct {
	store        ports.PaymentStore
	collaborator ports.BalanceCollaborator
	publisher    ports.EventPublisher
	logger       *slog.Logger
}

func NewPaymentSaga(
	store ports.PaymentStore,
	collaborator ports.BalanceCollaborator,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) *PaymentSaga {
	return &PaymentSaga{
		store:        store,
		collaborator: collaborator,
		publisher:    publisher,
		logger:       logger,
	}
}

// Execute runs the saga for paymentID. Only a failure to load the payment
// (or cancellation before the debit is issued) is returned; every other
// path ends in APPROVED or REJECTED and returns nil.
func (s *PaymentSaga) Execute(ctx context.Context, paymentID uuid.UUID) (SagaOutcome, error) {
	payment, err := s.store.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return "", fmt.Errorf("load payment %s: %w", paymentID, err)
	}

	logger := s.logger.With("payment_id", payment.ID)

	if payment.Status != domain.StatusPending {
		logger.Info("payment already settled, skipping saga", "status", payment.Status)
		return OutcomeSkipped, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	debitErr := s.collaborator.Debit(ctx, domain.BalanceRequest{
		AccountID:  payment.PayerID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Reference:  domain.DebitReference(payment.ID),
		ReversedBy: domain.RefundReference(payment.ID),
	})

	// The debit has been issued; the run has to reach a terminal status.
	ctx = context.WithoutCancel(ctx)

	if debitErr != nil {
		logger.Warn("payer debit failed",
			"payer_id", payment.PayerID,
			"business_rejection", domain.IsBusinessRejection(debitErr),
			"transport_error", domain.IsTransportError(debitErr),
			"error", debitErr,
		)
		s.reject(ctx, logger, payment, "payer debit failed: "+debitErr.Error())
		return OutcomeRejected, nil
	}

	if err := s.complete(ctx, payment); err != nil {
		logger.Error("post-debit step failed, compensating", "error", err)
		s.compensate(ctx, logger, payment)
		s.reject(ctx, logger, payment, "payment compensated: "+err.Error())
		return OutcomeCompensated, nil
	}

	logger.Info("payment approved", "amount", payment.Amount.String(), "currency", payment.Currency)
	s.processed(ctx, logger, payment, domain.StatusApproved, "payment approved")
	return OutcomeApproved, nil
}

// complete announces the debit and persists the APPROVED transition.
func (s *PaymentSaga) complete(ctx context.Context, payment *domain.Payment) error {
	event := domain.NewPaymentCompletedEvent(payment)
	if err := s.publisher.Publish(ctx, domain.TopicPaymentCompleted, payment.ID.String(), event); err != nil {
		return fmt.Errorf("publish payment completed: %w", err)
	}

	approved := payment.Clone()
	if err := approved.Approve(); err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx ports.PaymentStore) error {
		if err := tx.Payments().UpdatePayment(ctx, approved); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if _, err := tx.Ledger().AppendApproved(ctx, approved.ID); err != nil {
			return fmt.Errorf("append approved event: %w", err)
		}
		return nil
	})
}

// compensate refunds the payer. Failures are logged and never returned.
func (s *PaymentSaga) compensate(ctx context.Context, logger *slog.Logger, payment *domain.Payment) {
	err := s.collaborator.Credit(ctx, domain.BalanceRequest{
		AccountID: payment.PayerID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Reference: domain.RefundReference(payment.ID),
	})
	if err != nil {
		logger.Error("compensation failed, payer refund requires manual action",
			"payer_id", payment.PayerID,
			"amount", payment.Amount.String(),
			"currency", payment.Currency,
			"error", err,
		)
		return
	}
	logger.Info("payer refunded", "payer_id", payment.PayerID)
}

// reject persists the REJECTED transition. Failures are logged and never
// returned.
func (s *PaymentSaga) reject(ctx context.Context, logger *slog.Logger, payment *domain.Payment, reason string) {
	rejected := payment.Clone()
	if err := rejected.Reject(); err != nil {
		logger.Error("cannot reject payment", "error", err)
		return
	}

	err := s.store.WithTx(ctx, func(tx ports.PaymentStore) error {
		if err := tx.Payments().UpdatePayment(ctx, rejected); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if _, err := tx.Ledger().AppendRejected(ctx, rejected.ID); err != nil {
			return fmt.Errorf("append rejected event: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to record rejection", "reason", reason, "error", err)
		return
	}

	logger.Info("payment rejected", "reason", reason)
	s.processed(ctx, logger, payment, domain.StatusRejected, reason)
}

func (s *PaymentSaga) processed(ctx context.Context, logger *slog.Logger, payment *domain.Payment, status domain.PaymentStatus, description string) {
	final := payment.Clone()
	final.Status = status
	event := domain.NewPaymentProcessedEvent(final, description)
	if err := s.publisher.Publish(ctx, domain.TopicPaymentProcessed, payment.ID.String(), event); err != nil {
		logger.Warn("failed to publish payment processed", "error", err)
	}
}
