package handler

import (
	"net/http"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreatePaymentRequest struct {
	PayerID  string          `json:"payer_id" validate:"required,uuid"`
	PayeeID  string          `json:"payee_id" validate:"required,uuid"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"required,len=3,alpha"`
}

type PaymentResponse struct {
	ID        uuid.UUID       `json:"id"`
	PayerID   uuid.UUID       `json:"payer_id"`
	PayeeID   uuid.UUID       `json:"payee_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type PaymentEventResponse struct {
	Sequence   int64           `json:"sequence"`
	ID         uuid.UUID       `json:"id"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	Type       string          `json:"type"`
	PayerID    uuid.UUID       `json:"payer_id"`
	PayeeID    uuid.UUID       `json:"payee_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		PayerID:   p.PayerID,
		PayeeID:   p.PayeeID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPaymentEvents(events []domain.PaymentEvent) []PaymentEventResponse {
	out := make([]PaymentEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, PaymentEventResponse{
			Sequence:   ev.Sequence,
			ID:         ev.ID,
			PaymentID:  ev.PaymentID,
			Type:       string(ev.Type),
			PayerID:    ev.PayerID,
			PayeeID:    ev.PayeeID,
			Amount:     ev.Amount,
			Currency:   ev.Currency,
			Status:     string(ev.Status),
			OccurredAt: ev.OccurredAt,
		})
	}
	return out
}

// HandleCreatePayment accepts a payment and returns it as PENDING. The
// money moves later, when the saga picks up the payment-created event.
func (h *Handler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := h.decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	payment, err := h.payments.CreatePayment(r.Context(), service.CreatePaymentCommand{
		PayerID:  uuid.MustParse(req.PayerID),
		PayeeID:  uuid.MustParse(req.PayeeID),
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		h.logger.Warn("payment intake failed", "error", err)
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, toPaymentResponse(payment))
}

func (h *Handler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	payment, err := h.query.GetPayment(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) HandlePaymentEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	events, err := h.query.PaymentHistory(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentEvents(events))
}

func (h *Handler) HandleParticipantEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	events, err := h.query.ParticipantHistory(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentEvents(events))
}
