package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSagaRunner struct {
	calls     []uuid.UUID
	executeFn func(ctx context.Context, id uuid.UUID) (SagaOutcome, error)
}

func (m *mockSagaRunner) Execute(ctx context.Context, id uuid.UUID) (SagaOutcome, error) {
	m.calls = append(m.calls, id)
	if m.executeFn != nil {
		return m.executeFn(ctx, id)
	}
	return OutcomeApproved, nil
}

func createdMessage(t *testing.T, status domain.PaymentStatus) (ports.Message, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(domain.PaymentCreatedEvent{
		EventID:   uuid.New(),
		PaymentID: id,
		Status:    status,
	})
	require.NoError(t, err)
	return ports.Message{ID: "1-0", Topic: domain.TopicPaymentCreated, Key: id.String(), Payload: payload}, id
}

func TestSagaTrigger_HandlePaymentCreated(t *testing.T) {
	t.Run("runs saga for pending payment", func(t *testing.T) {
		runner := &mockSagaRunner{}
		trigger := NewSagaTrigger(runner, discardLogger())
		msg, id := createdMessage(t, domain.StatusPending)

		require.NoError(t, trigger.HandlePaymentCreated(context.Background(), msg))
		assert.Equal(t, []uuid.UUID{id}, runner.calls)
	})

	t.Run("each delivery runs the saga", func(t *testing.T) {
		runner := &mockSagaRunner{}
		trigger := NewSagaTrigger(runner, discardLogger())
		msg, _ := createdMessage(t, domain.StatusPending)

		require.NoError(t, trigger.HandlePaymentCreated(context.Background(), msg))
		require.NoError(t, trigger.HandlePaymentCreated(context.Background(), msg))
		assert.Len(t, runner.calls, 2)
	})

	t.Run("ignores non-pending notifications", func(t *testing.T) {
		runner := &mockSagaRunner{}
		trigger := NewSagaTrigger(runner, discardLogger())
		msg, _ := createdMessage(t, domain.StatusApproved)

		require.NoError(t, trigger.HandlePaymentCreated(context.Background(), msg))
		assert.Empty(t, runner.calls)
	})

	t.Run("propagates load failures for redelivery", func(t *testing.T) {
		runner := &mockSagaRunner{
			executeFn: func(ctx context.Context, id uuid.UUID) (SagaOutcome, error) {
				return "", domain.NewPaymentNotFoundError(id.String())
			},
		}
		trigger := NewSagaTrigger(runner, discardLogger())
		msg, _ := createdMessage(t, domain.StatusPending)

		err := trigger.HandlePaymentCreated(context.Background(), msg)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodePaymentNotFound))
	})

	t.Run("drops malformed payloads", func(t *testing.T) {
		runner := &mockSagaRunner{}
		trigger := NewSagaTrigger(runner, discardLogger())

		err := trigger.HandlePaymentCreated(context.Background(), ports.Message{Payload: []byte("{not json")})
		assert.NoError(t, err)
		assert.Empty(t, runner.calls)
	})
}

func TestSagaTrigger_EndToEnd(t *testing.T) {
	store := NewMockPaymentStore()
	collab := &MockBalanceCollaborator{}
	pub := &MockEventPublisher{}
	acceptAll(pub)
	saga := NewPaymentSaga(store, collab, pub, discardLogger())
	trigger := NewSagaTrigger(saga, discardLogger())

	p := seedPending(t, store)
	payload, err := json.Marshal(domain.NewPaymentCreatedEvent(p))
	require.NoError(t, err)
	msg := ports.Message{Topic: domain.TopicPaymentCreated, Key: p.ID.String(), Payload: payload}

	require.NoError(t, trigger.HandlePaymentCreated(context.Background(), msg))
	require.NoError(t, trigger.HandlePaymentCreated(context.Background(), msg))

	stored, _ := store.FindByID(context.Background(), p.ID)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Equal(t, 1, collab.GetCalls("Debit"))
}
