package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RegisterMerchantCommand struct {
	Name           string
	Email          string
	Phone          string
	OpeningBalance decimal.Decimal
	Currency       string
}

// MerchantService owns merchant balances. It is the local balance
// collaborator: every movement is applied under a row lock together with
// its ledger entry, and a repeated reference is acknowledged without being
// applied twice.
type MerchantService struct {
	store  ports.MerchantStore
	logger *slog.Logger
}

var _ ports.BalanceCollaborator = (*MerchantService)(nil)

func NewMerchantService(store ports.MerchantStore, logger *slog.Logger) *MerchantService {
	return &MerchantService{store: store, logger: logger}
}

func (s *MerchantService) RegisterMerchant(ctx context.Context, cmd RegisterMerchantCommand) (*domain.Merchant, error) {
	merchant, err := domain.NewMerchant(cmd.Name, cmd.Email, cmd.Phone, cmd.OpeningBalance, cmd.Currency)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx ports.MerchantStore) error {
		if err := tx.Merchants().CreateMerchant(ctx, merchant); err != nil {
			return err
		}
		return tx.Ledger().Append(ctx, &domain.MerchantEvent{
			ID:            uuid.New(),
			MerchantID:    merchant.ID,
			Type:          domain.MerchantEventRegistered,
			Reference:     "merchant:" + merchant.ID.String() + ":registered",
			BalanceChange: merchant.Balance,
			NewBalance:    merchant.Balance,
			Currency:      merchant.Currency,
			Description:   "merchant registered",
			OccurredAt:    merchant.CreatedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("register merchant: %w", err)
	}

	s.logger.Info("merchant registered", "merchant_id", merchant.ID, "currency", merchant.Currency)
	return merchant, nil
}

func (s *MerchantService) GetMerchant(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	return s.store.Merchants().FindByID(ctx, id)
}

func (s *MerchantService) MerchantHistory(ctx context.Context, id uuid.UUID) ([]domain.MerchantEvent, error) {
	if _, err := s.store.Merchants().FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Ledger().HistoryFor(ctx, id)
}

func (s *MerchantService) Debit(ctx context.Context, req domain.BalanceRequest) error {
	return s.apply(ctx, req, domain.MerchantEventPaymentDebited)
}

func (s *MerchantService) Credit(ctx context.Context, req domain.BalanceRequest) error {
	return s.apply(ctx, req, domain.MerchantEventPaymentReceived)
}

func (s *MerchantService) apply(ctx context.Context, req domain.BalanceRequest, eventType domain.MerchantEventType) error {
	var (
		applied bool
		balance decimal.Decimal
	)

	err := s.store.WithTx(ctx, func(tx ports.MerchantStore) error {
		merchant, err := tx.Merchants().FindByIDForUpdate(ctx, req.AccountID)
		if err != nil {
			return err
		}

		if eventType == domain.MerchantEventPaymentDebited && req.ReversedBy != "" {
			reversed, err := tx.Ledger().HasReference(ctx, merchant.ID, domain.MerchantEventPaymentReceived, req.ReversedBy)
			if err != nil {
				return fmt.Errorf("check reversal: %w", err)
			}
			if reversed {
				return domain.NewPaymentReversedError(req.ReversedBy)
			}
		}

		if req.Reference != "" {
			seen, err := tx.Ledger().HasReference(ctx, merchant.ID, eventType, req.Reference)
			if err != nil {
				return fmt.Errorf("check reference: %w", err)
			}
			if seen {
				return nil
			}
		}

		change := req.Amount
		if eventType == domain.MerchantEventPaymentDebited {
			err = merchant.Debit(req.Amount, req.Currency)
			change = req.Amount.Neg()
		} else {
			err = merchant.Credit(req.Amount, req.Currency)
		}
		if err != nil {
			return err
		}

		if err := tx.Merchants().UpdateMerchant(ctx, merchant); err != nil {
			return fmt.Errorf("update merchant: %w", err)
		}

		if err := tx.Ledger().Append(ctx, &domain.MerchantEvent{
			ID:            uuid.New(),
			MerchantID:    merchant.ID,
			Type:          eventType,
			Reference:     req.Reference,
			BalanceChange: change,
			NewBalance:    merchant.Balance,
			Currency:      merchant.Currency,
			Description:   describe(eventType, req),
			OccurredAt:    time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("append merchant event: %w", err)
		}

		applied = true
		balance = merchant.Balance
		return nil
	})
	if err != nil {
		return err
	}

	if !applied {
		s.logger.Info("balance movement already applied",
			"merchant_id", req.AccountID,
			"type", eventType,
			"reference", req.Reference,
		)
		return nil
	}

	s.logger.Info("balance updated",
		"merchant_id", req.AccountID,
		"type", eventType,
		"amount", req.Amount.String(),
		"new_balance", balance.String(),
		"reference", req.Reference,
	)
	return nil
}

// HandlePaymentCompleted credits the payee once the payer has been
// debited. Refusals are logged and dropped since redelivery cannot change
// the outcome.
func (s *MerchantService) HandlePaymentCompleted(ctx context.Context, msg ports.Message) error {
	var event domain.PaymentCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.logger.Error("dropping malformed payment completed message", "message_id", msg.ID, "error", err)
		return nil
	}

	err := s.Credit(ctx, domain.BalanceRequest{
		AccountID: event.PayeeID,
		Amount:    event.Amount,
		Currency:  event.Currency,
		Reference: domain.CreditReference(event.PaymentID),
	})
	if err != nil {
		if domain.IsBusinessRejection(err) {
			s.logger.Error("payee credit refused",
				"payment_id", event.PaymentID,
				"payee_id", event.PayeeID,
				"error", err,
			)
			return nil
		}
		return fmt.Errorf("credit payee for payment %s: %w", event.PaymentID, err)
	}
	return nil
}

func describe(eventType domain.MerchantEventType, req domain.BalanceRequest) string {
	switch eventType {
	case domain.MerchantEventPaymentDebited:
		return fmt.Sprintf("debited %s %s (%s)", req.Amount, req.Currency, req.Reference)
	default:
		return fmt.Sprintf("received %s %s (%s)", req.Amount, req.Currency, req.Reference)
	}
}
