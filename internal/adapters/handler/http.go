package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/service"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

type PaymentIntake interface {
	CreatePayment(ctx context.Context, cmd service.CreatePaymentCommand) (*domain.Payment, error)
}

type PaymentQuery interface {
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	PaymentHistory(ctx context.Context, id uuid.UUID) ([]domain.PaymentEvent, error)
	ParticipantHistory(ctx context.Context, participantID uuid.UUID) ([]domain.PaymentEvent, error)
}

type MerchantOperations interface {
	RegisterMerchant(ctx context.Context, cmd service.RegisterMerchantCommand) (*domain.Merchant, error)
	GetMerchant(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	MerchantHistory(ctx context.Context, id uuid.UUID) ([]domain.MerchantEvent, error)
	Debit(ctx context.Context, req domain.BalanceRequest) error
	Credit(ctx context.Context, req domain.BalanceRequest) error
}

type Handler struct {
	payments  PaymentIntake
	query     PaymentQuery
	merchants MerchantOperations
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewHandler(
	payments PaymentIntake,
	query PaymentQuery,
	merchants MerchantOperations,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		payments:  payments,
		query:     query,
		merchants: merchants,
		validate:  validator.New(),
		logger:    logger,
	}
}

// RegisterRoutes mounts every route on mux. intake wraps the routes that
// create payments, typically with a rate limit.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, intake func(http.Handler) http.Handler) {
	if intake == nil {
		intake = func(next http.Handler) http.Handler { return next }
	}

	mux.Handle("POST /payments", intake(http.HandlerFunc(h.HandleCreatePayment)))
	mux.HandleFunc("GET /payments/{id}", h.HandleGetPayment)
	mux.HandleFunc("GET /payments/{id}/events", h.HandlePaymentEvents)
	mux.HandleFunc("GET /participants/{id}/payment-events", h.HandleParticipantEvents)

	mux.HandleFunc("POST /merchants", h.HandleRegisterMerchant)
	mux.HandleFunc("GET /merchants/{id}", h.HandleGetMerchant)
	mux.HandleFunc("GET /merchants/{id}/events", h.HandleMerchantEvents)
	mux.HandleFunc("POST /merchants/{id}/debit", h.HandleDebit)
	mux.HandleFunc("POST /merchants/{id}/credit", h.HandleCredit)

	mux.HandleFunc("GET /healthz", h.HandleHealth)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, validationError("id must be a valid UUID")
	}
	return id, nil
}
