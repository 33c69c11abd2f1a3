package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedPending(t *testing.T, store *MockPaymentStore) *domain.Payment {
	t.Helper()
	p := domain.NewPayment(uuid.New(), uuid.New(), decimal.RequireFromString("100.00"), "USD")
	require.NoError(t, p.Initialize())
	store.Seed(p)
	_, err := store.AppendCreated(context.Background(), p)
	require.NoError(t, err)
	return p
}

func topics(pub *MockEventPublisher, topic string) int {
	n := 0
	for _, call := range pub.Calls {
		if call.Method == "Publish" && call.Arguments.String(1) == topic {
			n++
		}
	}
	return n
}

func acceptAll(pub *MockEventPublisher) {
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func eventTypes(events []domain.PaymentEvent) []domain.PaymentEventType {
	out := make([]domain.PaymentEventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

// ============================================================================
// Happy path
// ============================================================================

func TestPaymentSaga_Approves(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, outcome)

	stored, err := store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)

	events := store.Events(p.ID)
	assert.Equal(t, []domain.PaymentEventType{domain.PaymentEventCreated, domain.PaymentEventApproved}, eventTypes(events))
	assert.Equal(t, domain.StatusApproved, events[1].Status)

	assert.Equal(t, 1, collab.GetCalls("Debit"))
	assert.Equal(t, 0, collab.GetCalls("Credit"))
	debit := collab.Requests()[0]
	assert.Equal(t, p.PayerID, debit.AccountID)
	assert.True(t, p.Amount.Equal(debit.Amount))
	assert.Equal(t, domain.DebitReference(p.ID), debit.Reference)

	assert.Equal(t, 1, topics(pub, domain.TopicPaymentCompleted))
	assert.Equal(t, 1, topics(pub, domain.TopicPaymentProcessed))
	pub.AssertCalled(t, "Publish", mock.Anything, domain.TopicPaymentCompleted, p.ID.String(), mock.MatchedBy(func(ev domain.PaymentCompletedEvent) bool {
		return ev.PaymentID == p.ID && ev.PayeeID == p.PayeeID && ev.Status == domain.StatusApproved
	}))
}

// ============================================================================
// Debit failures
// ============================================================================

func TestPaymentSaga_DebitRejected(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{
		DebitFn: func(ctx context.Context, req domain.BalanceRequest) error {
			return domain.NewInsufficientFundsError(req.AccountID.String(), "10.00", req.Amount.String())
		},
	}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Equal(t, []domain.PaymentEventType{domain.PaymentEventCreated, domain.PaymentEventRejected}, eventTypes(store.Events(p.ID)))
	assert.Equal(t, 0, topics(pub, domain.TopicPaymentCompleted))
	assert.Equal(t, 0, collab.GetCalls("Credit"))
}

func TestPaymentSaga_DebitTransportError(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{
		DebitFn: func(ctx context.Context, req domain.BalanceRequest) error {
			return &domain.TransportError{Operation: "debit", Err: errors.New("connection reset")}
		},
	}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)
	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Equal(t, 0, collab.GetCalls("Credit"))
	assert.Equal(t, 0, topics(pub, domain.TopicPaymentCompleted))
}

// ============================================================================
// Post-debit failures
// ============================================================================

func TestPaymentSaga_PublishFailureCompensates(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	pub.On("Publish", mock.Anything, domain.TopicPaymentCompleted, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	pub.On("Publish", mock.Anything, domain.TopicPaymentProcessed, mock.Anything, mock.Anything).Return(nil)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompensated, outcome)

	require.Equal(t, 1, collab.GetCalls("Credit"))
	refund := collab.Requests()[1]
	assert.Equal(t, p.PayerID, refund.AccountID)
	assert.True(t, p.Amount.Equal(refund.Amount))
	assert.Equal(t, domain.RefundReference(p.ID), refund.Reference)

	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Equal(t, []domain.PaymentEventType{domain.PaymentEventCreated, domain.PaymentEventRejected}, eventTypes(store.Events(p.ID)))
}

func TestPaymentSaga_FinalizeFailureRollsBackAndCompensates(t *testing.T) {
	store := NewMockPaymentStore()
	store.AppendApprovedFn = func(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
		return nil, errors.New("disk full")
	}
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompensated, outcome)
	assert.Equal(t, 1, collab.GetCalls("Credit"))

	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusRejected, stored.Status)

	status, err := domain.FoldPaymentEvents(store.Events(p.ID))
	require.NoError(t, err)
	assert.Equal(t, stored.Status, status)
}

func TestPaymentSaga_CompensationFailureIsSwallowed(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{
		CreditFn: func(ctx context.Context, req domain.BalanceRequest) error {
			return &domain.TransportError{Operation: "credit", StatusCode: 503, Err: errors.New("unavailable")}
		},
	}
	pub := &MockEventPublisher{}
	pub.On("Publish", mock.Anything, domain.TopicPaymentCompleted, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	pub.On("Publish", mock.Anything, domain.TopicPaymentProcessed, mock.Anything, mock.Anything).Return(nil)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompensated, outcome)
	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusRejected, stored.Status)
}

func TestPaymentSaga_RejectBookkeepingFailureIsSwallowed(t *testing.T) {
	store := NewMockPaymentStore()
	store.AppendRejectedFn = func(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
		return nil, errors.New("connection lost")
	}
	collab := &MockBalanceCollaborator{
		DebitFn: func(ctx context.Context, req domain.BalanceRequest) error {
			return domain.NewInsufficientFundsError(req.AccountID.String(), "0", req.Amount.String())
		},
	}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)
	assert.Equal(t, 0, topics(pub, domain.TopicPaymentProcessed))
}

func TestPaymentSaga_RerunAfterCompensationStaysRejected(t *testing.T) {
	ctx := context.Background()
	merchants := NewMerchantService(NewMockMerchantStore(), discardLogger())
	payer := registerMerchant(t, merchants, "payer@example.com", "100.00")
	payee := registerMerchant(t, merchants, "payee@example.com", "0")

	store := NewMockPaymentStore()
	store.AppendApprovedFn = func(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
		return nil, errors.New("disk full")
	}
	store.AppendRejectedFn = func(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
		return nil, errors.New("disk full")
	}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, merchants, pub, discardLogger())

	p := domain.NewPayment(payer.ID, payee.ID, decimal.RequireFromString("40.00"), "USD")
	require.NoError(t, p.Initialize())
	store.Seed(p)
	_, err := store.AppendCreated(ctx, p)
	require.NoError(t, err)

	outcome, err := saga.Execute(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompensated, outcome)

	stored, _ := store.FindByID(ctx, p.ID)
	require.Equal(t, domain.StatusPending, stored.Status)
	got, _ := merchants.GetMerchant(ctx, payer.ID)
	require.Equal(t, "100.00", got.Balance.StringFixed(2))

	store.AppendApprovedFn = nil
	store.AppendRejectedFn = nil

	outcome, err = saga.Execute(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	stored, _ = store.FindByID(ctx, p.ID)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Equal(t, []domain.PaymentEventType{domain.PaymentEventCreated, domain.PaymentEventRejected}, eventTypes(store.Events(p.ID)))

	got, _ = merchants.GetMerchant(ctx, payer.ID)
	assert.Equal(t, "100.00", got.Balance.StringFixed(2))
	assert.Equal(t, 1, topics(pub, domain.TopicPaymentCompleted))
}

func TestPaymentSaga_DebitCarriesRefundReference(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	_, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	debit := collab.Requests()[0]
	assert.Equal(t, domain.DebitReference(p.ID), debit.Reference)
	assert.Equal(t, domain.RefundReference(p.ID), debit.ReversedBy)
}

func TestPaymentSaga_CancellationAfterDebitStillFinalizes(t *testing.T) {
	store := NewMockPaymentStore()
	ctx, cancel := context.WithCancel(context.Background())
	collab := &MockBalanceCollaborator{
		DebitFn: func(ctx context.Context, req domain.BalanceRequest) error {
			cancel()
			return nil
		},
	}
	pub := &MockEventPublisher{}
	pub.On("Publish", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything, mock.Anything, mock.Anything).Return(nil)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	outcome, err := saga.Execute(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, outcome)
	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusApproved, stored.Status)
}

// ============================================================================
// Entry guards
// ============================================================================

func TestPaymentSaga_UnknownPayment(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	_, err := saga.Execute(context.Background(), uuid.New())

	assert.True(t, domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
	assert.Equal(t, 0, collab.GetCalls("Debit"))
	assert.Equal(t, 0, collab.GetCalls("Credit"))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentSaga_RedeliveryOnSettledPaymentIsNoop(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)

	first, err := saga.Execute(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeApproved, first)

	second, err := saga.Execute(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second)
	assert.Equal(t, 1, collab.GetCalls("Debit"))
	assert.Len(t, store.Events(p.ID), 2)
}

func TestPaymentSaga_CancelledBeforeDebit(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	saga := NewPaymentSaga(store, collab, pub, discardLogger())

	p := seedPending(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := saga.Execute(ctx, p.ID)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, collab.GetCalls("Debit"))
	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusPending, stored.Status)
}
