package postgres

import (
	"context"

	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/jackc/pgx/v5"
)

// PaymentStore implements ports.PaymentStore over a pool or a transaction.
type PaymentStore struct {
	db       *DB
	payments *PaymentRepository
	ledger   *PaymentLedger
}

func NewPaymentStore(db *DB) *PaymentStore {
	return newPaymentStore(db, db.Pool)
}

func newPaymentStore(db *DB, q Executor) *PaymentStore {
	return &PaymentStore{
		db:       db,
		payments: &PaymentRepository{q: q},
		ledger:   &PaymentLedger{q: q},
	}
}

func (s *PaymentStore) Payments() ports.PaymentRepository { return s.payments }
func (s *PaymentStore) Ledger() ports.PaymentLedger       { return s.ledger }

// WithTx executes fn with a store bound to a single transaction.
func (s *PaymentStore) WithTx(ctx context.Context, fn func(ports.PaymentStore) error) error {
	return s.db.withTx(ctx, func(tx pgx.Tx) error {
		return fn(newPaymentStore(s.db, tx))
	})
}

// MerchantStore implements ports.MerchantStore over a pool or a transaction.
type MerchantStore struct {
	db        *DB
	merchants *MerchantRepository
	ledger    *MerchantLedger
}

func NewMerchantStore(db *DB) *MerchantStore {
	return newMerchantStore(db, db.Pool)
}

func newMerchantStore(db *DB, q Executor) *MerchantStore {
	return &MerchantStore{
		db:        db,
		merchants: &MerchantRepository{q: q},
		ledger:    &MerchantLedger{q: q},
	}
}

func (s *MerchantStore) Merchants() ports.MerchantRepository { return s.merchants }
func (s *MerchantStore) Ledger() ports.MerchantLedger         { return s.ledger }

func (s *MerchantStore) WithTx(ctx context.Context, fn func(ports.MerchantStore) error) error {
	return s.db.withTx(ctx, func(tx pgx.Tx) error {
		return fn(newMerchantStore(s.db, tx))
	})
}
