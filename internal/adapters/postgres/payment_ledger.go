package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentEventColumns = `sequence, id, payment_id, event_type, payer_id, payee_id, amount, currency, status, occurred_at`

// PaymentLedger appends to and reads from payment_events.
type PaymentLedger struct {
	q Executor
}

func (l *PaymentLedger) AppendCreated(ctx context.Context, p *domain.Payment) (*domain.PaymentEvent, error) {
	query := `INSERT INTO payment_events (id, payment_id, event_type, payer_id, payee_id, amount, currency, status, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING ` + paymentEventColumns

	ev, err := scanPaymentEvent(l.q.QueryRow(ctx, query,
		uuid.New(),
		p.ID,
		domain.PaymentEventCreated,
		p.PayerID,
		p.PayeeID,
		p.Amount,
		p.Currency,
		p.Status,
		p.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to append created event: %w", err)
	}
	return ev, nil
}

func (l *PaymentLedger) AppendApproved(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
	return l.appendSnapshot(ctx, paymentID, domain.PaymentEventApproved)
}

func (l *PaymentLedger) AppendRejected(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
	return l.appendSnapshot(ctx, paymentID, domain.PaymentEventRejected)
}

// appendSnapshot copies the stored payment row into a new event so the
// entry reflects the payment as of the append.
func (l *PaymentLedger) appendSnapshot(ctx context.Context, paymentID uuid.UUID, eventType domain.PaymentEventType) (*domain.PaymentEvent, error) {
	query := `INSERT INTO payment_events (id, payment_id, event_type, payer_id, payee_id, amount, currency, status, occurred_at)
			SELECT $1, id, $2, payer_id, payee_id, amount, currency, status, now()
			FROM payments
			WHERE id = $3
			RETURNING ` + paymentEventColumns

	ev, err := scanPaymentEvent(l.q.QueryRow(ctx, query, uuid.New(), eventType, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(paymentID.String())
		}
		return nil, fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return ev, nil
}

// HistoryFor returns the payment's events in append order.
func (l *PaymentLedger) HistoryFor(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentEvent, error) {
	query := `SELECT ` + paymentEventColumns + `
			FROM payment_events
			WHERE payment_id = $1
			ORDER BY sequence ASC`

	return l.collect(ctx, query, paymentID)
}

// HistoryForParticipant returns every event where the id is payer or
// payee, in append order.
func (l *PaymentLedger) HistoryForParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.PaymentEvent, error) {
	query := `SELECT ` + paymentEventColumns + `
			FROM payment_events
			WHERE payer_id = $1 OR payee_id = $1
			ORDER BY sequence ASC`

	return l.collect(ctx, query, participantID)
}

func (l *PaymentLedger) collect(ctx context.Context, query string, arg uuid.UUID) ([]domain.PaymentEvent, error) {
	rows, err := l.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PaymentEvent, error) {
		ev, err := scanPaymentEvent(row)
		if err != nil {
			return domain.PaymentEvent{}, err
		}
		return *ev, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect payment events: %w", err)
	}
	return events, nil
}

func scanPaymentEvent(row pgx.Row) (*domain.PaymentEvent, error) {
	var ev domain.PaymentEvent
	err := row.Scan(
		&ev.Sequence,
		&ev.ID,
		&ev.PaymentID,
		&ev.Type,
		&ev.PayerID,
		&ev.PayeeID,
		&ev.Amount,
		&ev.Currency,
		&ev.Status,
		&ev.OccurredAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
