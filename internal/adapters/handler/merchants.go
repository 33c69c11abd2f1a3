package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RegisterMerchantRequest struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Email          string          `json:"email" validate:"required,email"`
	Phone          string          `json:"phone" validate:"omitempty,max=32"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Currency       string          `json:"currency" validate:"required,len=3,alpha"`
}

// BalanceMovementRequest is the body of a debit or credit. Reference falls
// back to the Idempotency-Key header. ReversedBy only applies to debits.
type BalanceMovementRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"required,len=3,alpha"`
	Reference  string          `json:"reference" validate:"omitempty,max=255"`
	ReversedBy string          `json:"reversed_by" validate:"omitempty,max=255"`
}

type MerchantResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type MerchantEventResponse struct {
	Sequence      int64           `json:"sequence"`
	ID            uuid.UUID       `json:"id"`
	MerchantID    uuid.UUID       `json:"merchant_id"`
	Type          string          `json:"type"`
	Reference     string          `json:"reference,omitempty"`
	BalanceChange decimal.Decimal `json:"balance_change"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func toMerchantResponse(m *domain.Merchant) MerchantResponse {
	return MerchantResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Balance:   m.Balance,
		Currency:  m.Currency,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (h *Handler) HandleRegisterMerchant(w http.ResponseWriter, r *http.Request) {
	var req RegisterMerchantRequest
	if err := h.decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	merchant, err := h.merchants.RegisterMerchant(r.Context(), service.RegisterMerchantCommand{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		OpeningBalance: req.OpeningBalance,
		Currency:       req.Currency,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toMerchantResponse(merchant))
}

func (h *Handler) HandleGetMerchant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	merchant, err := h.merchants.GetMerchant(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toMerchantResponse(merchant))
}

func (h *Handler) HandleMerchantEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	events, err := h.merchants.MerchantHistory(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	out := make([]MerchantEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, MerchantEventResponse{
			Sequence:      ev.Sequence,
			ID:            ev.ID,
			MerchantID:    ev.MerchantID,
			Type:          string(ev.Type),
			Reference:     ev.Reference,
			BalanceChange: ev.BalanceChange,
			NewBalance:    ev.NewBalance,
			Currency:      ev.Currency,
			Description:   ev.Description,
			OccurredAt:    ev.OccurredAt,
		})
	}

	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleDebit(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.merchants.Debit)
}

func (h *Handler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.merchants.Credit)
}

func (h *Handler) handleMovement(w http.ResponseWriter, r *http.Request, apply func(context.Context, domain.BalanceRequest) error) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	var req BalanceMovementRequest
	if err := h.decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	reference := req.Reference
	if reference == "" {
		reference = r.Header.Get("Idempotency-Key")
	}

	err = apply(r.Context(), domain.BalanceRequest{
		AccountID:  id,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Reference:  reference,
		ReversedBy: req.ReversedBy,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	merchant, err := h.merchants.GetMerchant(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toMerchantResponse(merchant))
}
