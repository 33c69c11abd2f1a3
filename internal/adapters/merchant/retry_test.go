package merchant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/config"
	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCollaborator struct {
	mock.Mock
}

func (m *mockCollaborator) Debit(ctx context.Context, req domain.BalanceRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockCollaborator) Credit(ctx context.Context, req domain.BalanceRequest) error {
	return m.Called(ctx, req).Error(0)
}

func newRetryClient(inner *mockCollaborator) *RetryClient {
	return NewRetryClient(inner, config.RetryConfig{
		BaseDelay:  time.Millisecond,
		MaxRetries: 3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRetryClient_Debit_Success(t *testing.T) {
	inner := &mockCollaborator{}
	req := sampleRequest()
	inner.On("Debit", mock.Anything, req).Return(nil).Once()

	err := newRetryClient(inner).Debit(context.Background(), req)

	require.NoError(t, err)
	inner.AssertExpectations(t)
}

func TestRetryClient_Debit_RetriesOn5xx(t *testing.T) {
	inner := &mockCollaborator{}
	req := sampleRequest()

	// First two calls fail with 503
	inner.On("Debit", mock.Anything, req).
		Return(&domain.TransportError{Operation: "debit", StatusCode: 503, Err: errors.New("unavailable")}).
		Twice()
	inner.On("Debit", mock.Anything, req).Return(nil).Once()

	err := newRetryClient(inner).Debit(context.Background(), req)

	require.NoError(t, err)
	inner.AssertNumberOfCalls(t, "Debit", 3)
}

func TestRetryClient_Debit_RetriesWhenRateLimited(t *testing.T) {
	inner := &mockCollaborator{}
	req := sampleRequest()

	inner.On("Debit", mock.Anything, req).
		Return(&domain.TransportError{Operation: "debit", StatusCode: 429, Err: errors.New("slow down")}).
		Once()
	inner.On("Debit", mock.Anything, req).
		Return(&domain.TransportError{Operation: "debit", StatusCode: 408, Err: errors.New("timeout")}).
		Once()
	inner.On("Debit", mock.Anything, req).Return(nil).Once()

	err := newRetryClient(inner).Debit(context.Background(), req)

	require.NoError(t, err)
	inner.AssertNumberOfCalls(t, "Debit", 3)
}

func TestRetryClient_Debit_DoesNotRetryRejections(t *testing.T) {
	inner := &mockCollaborator{}
	req := sampleRequest()
	inner.On("Debit", mock.Anything, req).
		Return(domain.NewInsufficientFundsError(req.AccountID.String(), "0", "19.99")).
		Once()

	err := newRetryClient(inner).Debit(context.Background(), req)

	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInsufficientFunds))
	inner.AssertNumberOfCalls(t, "Debit", 1)
}

func TestRetryClient_Credit_GivesUp(t *testing.T) {
	inner := &mockCollaborator{}
	req := sampleRequest()
	inner.On("Credit", mock.Anything, req).
		Return(&domain.TransportError{Operation: "credit", Err: errors.New("connection refused")})

	err := newRetryClient(inner).Credit(context.Background(), req)

	assert.ErrorContains(t, err, "maximum retries exceeded")
	assert.True(t, domain.IsTransportError(err))
	inner.AssertNumberOfCalls(t, "Credit", 3)
}

func TestRetryClient_StopsOnCancellation(t *testing.T) {
	inner := &mockCollaborator{}
	req := sampleRequest()
	ctx, cancel := context.WithCancel(context.Background())
	inner.On("Debit", mock.Anything, req).
		Run(func(mock.Arguments) { cancel() }).
		Return(&domain.TransportError{Operation: "debit", StatusCode: 500, Err: errors.New("boom")})

	err := newRetryClient(inner).Debit(ctx, req)

	assert.ErrorIs(t, err, context.Canceled)
	inner.AssertNumberOfCalls(t, "Debit", 1)
}
