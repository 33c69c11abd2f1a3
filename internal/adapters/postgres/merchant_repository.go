package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const merchantColumns = `id, name, email, phone, balance, currency, created_at, updated_at`

type MerchantRepository struct {
	q Executor
}

func (r *MerchantRepository) CreateMerchant(ctx context.Context, m *domain.Merchant) error {
	query := `INSERT INTO merchants (` + merchantColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.Exec(ctx, query,
		m.ID,
		m.Name,
		m.Email,
		m.Phone,
		m.Balance,
		m.Currency,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) && constraintName(err) == "merchants_email_key" {
			return domain.NewDuplicateMerchantError(m.Email)
		}
		return fmt.Errorf("failed to create merchant: %w", err)
	}
	return nil
}

func (r *MerchantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1`
	return r.find(ctx, query, id)
}

// FindByIDForUpdate locks the merchant row until the transaction ends.
func (r *MerchantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1 FOR UPDATE`
	return r.find(ctx, query, id)
}

func (r *MerchantRepository) find(ctx context.Context, query string, id uuid.UUID) (*domain.Merchant, error) {
	var m domain.Merchant
	err := r.q.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Name,
		&m.Email,
		&m.Phone,
		&m.Balance,
		&m.Currency,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewMerchantNotFoundError(id.String())
		}
		return nil, fmt.Errorf("failed to scan merchant: %w", err)
	}
	return &m, nil
}

func (r *MerchantRepository) UpdateMerchant(ctx context.Context, m *domain.Merchant) error {
	query := `UPDATE merchants SET balance = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, m.ID, m.Balance, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update merchant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewMerchantNotFoundError(m.ID.String())
	}
	return nil
}

const merchantEventColumns = `sequence, id, merchant_id, event_type, reference, balance_change, new_balance, currency, description, occurred_at`

// MerchantLedger appends to and reads from merchant_events.
type MerchantLedger struct {
	q Executor
}

func (l *MerchantLedger) Append(ctx context.Context, ev *domain.MerchantEvent) error {
	query := `INSERT INTO merchant_events (id, merchant_id, event_type, reference, balance_change, new_balance, currency, description, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING sequence`

	err := l.q.QueryRow(ctx, query,
		ev.ID,
		ev.MerchantID,
		ev.Type,
		ev.Reference,
		ev.BalanceChange,
		ev.NewBalance,
		ev.Currency,
		ev.Description,
		ev.OccurredAt,
	).Scan(&ev.Sequence)
	if err != nil {
		return fmt.Errorf("failed to append merchant event: %w", err)
	}
	return nil
}

func (l *MerchantLedger) HistoryFor(ctx context.Context, merchantID uuid.UUID) ([]domain.MerchantEvent, error) {
	query := `SELECT ` + merchantEventColumns + `
			FROM merchant_events
			WHERE merchant_id = $1
			ORDER BY sequence ASC`

	rows, err := l.q.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MerchantEvent, error) {
		var ev domain.MerchantEvent
		err := row.Scan(
			&ev.Sequence,
			&ev.ID,
			&ev.MerchantID,
			&ev.Type,
			&ev.Reference,
			&ev.BalanceChange,
			&ev.NewBalance,
			&ev.Currency,
			&ev.Description,
			&ev.OccurredAt,
		)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect merchant events: %w", err)
	}
	return events, nil
}

func (l *MerchantLedger) HasReference(ctx context.Context, merchantID uuid.UUID, eventType domain.MerchantEventType, reference string) (bool, error) {
	query := `SELECT EXISTS (
				SELECT 1 FROM merchant_events
				WHERE merchant_id = $1 AND event_type = $2 AND reference = $3
			)`

	var exists bool
	if err := l.q.QueryRow(ctx, query, merchantID, eventType, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check merchant event reference: %w", err)
	}
	return exists, nil
}
