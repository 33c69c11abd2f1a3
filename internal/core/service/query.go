package service

import (
	"context"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
)

// QueryService exposes read-only views over payments and their ledger.
type QueryService struct {
	store ports.PaymentStore
}

func NewQueryService(store ports.PaymentStore) *QueryService {
	return &QueryService{store: store}
}

func (s *QueryService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.store.Payments().FindByID(ctx, id)
}

// PaymentHistory returns the payment's ledger in append order. Unknown ids
// are reported as not found rather than as an empty history.
func (s *QueryService) PaymentHistory(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error) {
	if _, err := s.store.Payments().FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Ledger().HistoryFor(ctx, id)
}

func (s *QueryService) ParticipantHistory(ctx context.Context, participantID uuid.UUID) ([]domain.PaymentEvent, error) {
	return s.store.Ledger().HistoryForParticipant(ctx, participantID)
}

// ReplayStatus folds the payment's ledger and returns the status it
// implies, independent of the stored projection.
func (s *QueryService) ReplayStatus(ctx context.Context, id uuid.UUID) (domain.PaymentStatus, error) {
	events, err := s.PaymentHistory(ctx, id)
	if err != nil {
		return "", err
	}
	return domain.FoldPaymentEvents(events)
}
