package merchant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/config"
	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
)

// RetryClient retries transport failures of the wrapped collaborator with
// exponential backoff and jitter. The request, including its reference, is
// resent unchanged so the remote side can recognise the repeat.
type RetryClient struct {
	inner      ports.BalanceCollaborator
	baseDelay  time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewRetryClient(inner ports.BalanceCollaborator, cfg config.RetryConfig, logger *slog.Logger) *RetryClient {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (r *RetryClient) Debit(ctx context.Context, req domain.BalanceRequest) error {
	return r.retry(ctx, "debit", req, r.inner.Debit)
}

func (r *RetryClient) Credit(ctx context.Context, req domain.BalanceRequest) error {
	return r.retry(ctx, "credit", req, r.inner.Credit)
}

func (r *RetryClient) retry(
	ctx context.Context,
	operation string,
	req domain.BalanceRequest,
	call func(context.Context, domain.BalanceRequest) error,
) error {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := call(ctx, req)
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if attempt < r.maxRetries-1 {
			delay := r.backoff(attempt)
			r.logger.Warn("retrying balance operation",
				"operation", operation,
				"account_id", req.AccountID,
				"reference", req.Reference,
				"attempt", attempt+1,
				"delay", delay,
				"error", err,
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.IsRetryable()
	}
	return false
}

// backoff calculation with exponential delay and jitter
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(0)
	if r.baseDelay > 0 {
		jitter = time.Duration(rand.Int63n(int64(r.baseDelay)))
	}

	return base + jitter
}
