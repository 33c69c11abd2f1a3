package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
)

const errCodeValidation = "VALIDATION_ERROR"

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else if apiErr, ok := data.(*APIError); ok {
		response.Error = apiErr
	}

	_ = json.NewEncoder(w).Encode(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	code := "INTERNAL_ERROR"
	message := "internal server error"
	status := http.StatusInternalServerError

	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
		status = statusFor(domainErr.Code)
	}

	respondWithJSON(w, status, &APIError{
		Code:    code,
		Message: message,
	})
}

func statusFor(code string) int {
	switch code {
	case errCodeValidation, domain.ErrCodeInvalidPayment, domain.ErrCodeInvalidAmount, domain.ErrCodeInvalidMerchant:
		return http.StatusBadRequest
	case domain.ErrCodePaymentNotFound, domain.ErrCodeMerchantNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInvalidState, domain.ErrCodeDuplicateMerchant, domain.ErrCodePaymentReversed:
		return http.StatusConflict
	case domain.ErrCodeInsufficientFunds, domain.ErrCodeCurrencyMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func validationError(message string) error {
	return &domain.DomainError{Code: errCodeValidation, Message: message}
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return validationError("could not read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return validationError("request body is not valid JSON")
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err.Error())
	}
	return nil
}
