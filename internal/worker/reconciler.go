package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
)

// Announcer republishes the payment-created notification for a payment.
type Announcer interface {
	Announce(ctx context.Context, p *domain.Payment) error
}

// Reconciler finds payments that stayed PENDING longer than staleAfter and
// announces them again, so a payment whose original notification was lost
// still reaches the saga. The saga skips anything already settled.
type Reconciler struct {
	repo       ports.PaymentRepository
	announcer  Announcer
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewReconciler(
	repo ports.PaymentRepository,
	announcer Announcer,
	interval time.Duration,
	staleAfter time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		repo:       repo,
		announcer:  announcer,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		logger:     logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler",
		"interval", r.interval,
		"stale_after", r.staleAfter,
		"batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle and returns how many
// payments were announced again.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	stale, err := r.repo.FindStalePending(ctx, r.staleAfter, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch stale payments", "error", err)
		return 0
	}

	if len(stale) == 0 {
		return 0
	}

	r.logger.Info("reconciling stale payments", "count", len(stale))

	announced, failed := 0, 0
	for _, p := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := r.announcer.Announce(ctx, p); err != nil {
			r.logger.Error("failed to republish payment", "payment_id", p.ID, "error", err)
			failed++
			continue
		}
		announced++
	}

	r.logger.Info("stale payments republished", "announced", announced, "failed", failed)
	return announced
}
