package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
)

type SagaRunner interface {
	Execute(ctx context.Context, paymentID uuid.UUID) (SagaOutcome, error)
}

// SagaTrigger consumes payment-created notifications and runs the saga
// once per delivery. Redeliveries are not deduplicated here.
type SagaTrigger struct {
	saga   SagaRunner
	logger *slog.Logger
}

func NewSagaTrigger(saga SagaRunner, logger *slog.Logger) *SagaTrigger {
	return &SagaTrigger{saga: saga, logger: logger}
}

// HandlePaymentCreated is a ports.MessageHandler. An error is returned only
// when the saga could not load the payment, so the bus redelivers.
func (t *SagaTrigger) HandlePaymentCreated(ctx context.Context, msg ports.Message) error {
	var event domain.PaymentCreatedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.logger.Error("dropping malformed payment created message",
			"message_id", msg.ID,
			"error", err,
		)
		return nil
	}

	if event.Status != domain.StatusPending {
		t.logger.Debug("ignoring non-pending notification",
			"payment_id", event.PaymentID,
			"status", event.Status,
		)
		return nil
	}

	outcome, err := t.saga.Execute(ctx, event.PaymentID)
	if err != nil {
		t.logger.Error("saga run failed", "payment_id", event.PaymentID, "error", err)
		return err
	}

	t.logger.Info("saga run finished", "payment_id", event.PaymentID, "outcome", outcome)
	return nil
}
