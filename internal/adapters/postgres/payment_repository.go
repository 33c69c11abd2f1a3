package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, payer_id, payee_id, amount, currency, status, created_at, updated_at`

type PaymentRepository struct {
	q Executor
}

// CreatePayment saves a new payment.
func (r *PaymentRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.Exec(ctx, query,
		p.ID,
		p.PayerID,
		p.PayeeID,
		p.Amount,
		p.Currency,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// FindByID retrieves a payment by its id.
func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewPaymentNotFoundError(id.String())
	}
	return p, err
}

// UpdatePayment writes the payment's status.
func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	query := `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, p.ID, p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewPaymentNotFoundError(p.ID.String())
	}
	return nil
}

// FindStalePending returns PENDING payments created more than olderThan
// ago, oldest first.
func (r *PaymentRepository) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
			FROM payments
			WHERE status = 'PENDING' AND created_at < $1
			ORDER BY created_at ASC
			LIMIT $2`

	rows, err := r.q.Query(ctx, query, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale payments: %w", err)
	}

	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect stale payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.PayerID,
		&p.PayeeID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}
