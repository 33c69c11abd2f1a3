package service

import (
	"context"
	"testing"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryService(t *testing.T) {
	ctx := context.Background()
	store := NewMockPaymentStore()
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, &MockBalanceCollaborator{}, pub, discardLogger())
	query := NewQueryService(store)

	p := seedPending(t, store)
	_, err := saga.Execute(ctx, p.ID)
	require.NoError(t, err)

	t.Run("history is stable across reads", func(t *testing.T) {
		first, err := query.PaymentHistory(ctx, p.ID)
		require.NoError(t, err)
		second, err := query.PaymentHistory(ctx, p.ID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, []domain.PaymentEventType{domain.PaymentEventCreated, domain.PaymentEventApproved}, eventTypes(first))
	})

	t.Run("replay matches projection", func(t *testing.T) {
		status, err := query.ReplayStatus(ctx, p.ID)
		require.NoError(t, err)

		stored, err := query.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.Status, status)
	})

	t.Run("participant history covers payer and payee", func(t *testing.T) {
		asPayer, err := query.ParticipantHistory(ctx, p.PayerID)
		require.NoError(t, err)
		asPayee, err := query.ParticipantHistory(ctx, p.PayeeID)
		require.NoError(t, err)

		assert.Len(t, asPayer, 2)
		assert.Equal(t, asPayer, asPayee)

		none, err := query.ParticipantHistory(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("unknown payment is not found", func(t *testing.T) {
		_, err := query.PaymentHistory(ctx, uuid.New())
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
	})
}
