package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidPayment    = "INVALID_PAYMENT"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodePaymentNotFound   = "PAYMENT_NOT_FOUND"
	ErrCodeMerchantNotFound  = "MERCHANT_NOT_FOUND"
	ErrCodeDuplicateMerchant = "DUPLICATE_MERCHANT"
	ErrCodeInvalidAmount     = "INVALID_AMOUNT"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeCurrencyMismatch  = "CURRENCY_MISMATCH"
	ErrCodeInvalidHistory    = "INVALID_HISTORY"
	ErrCodeInvalidMerchant   = "INVALID_MERCHANT"
	ErrCodePaymentReversed   = "PAYMENT_REVERSED"
)

// businessRejections are the codes a balance collaborator answers with when
// it refuses an operation. They are never retried.
var businessRejections = map[string]bool{
	ErrCodeInvalidAmount:     true,
	ErrCodeInsufficientFunds: true,
	ErrCodeCurrencyMismatch:  true,
	ErrCodeMerchantNotFound:  true,
	ErrCodePaymentReversed:   true,
}

func NewInvalidPaymentError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidPayment,
		Message: fmt.Sprintf("invalid payment: %s", reason),
	}
}

func NewInvalidStateError(current PaymentStatus, action string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("cannot %s payment in status %s", action, current),
	}
}

func NewPaymentNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment %s not found", id),
	}
}

func NewMerchantNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMerchantNotFound,
		Message: fmt.Sprintf("merchant %s not found", id),
	}
}

func NewDuplicateMerchantError(email string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateMerchant,
		Message: fmt.Sprintf("merchant with email %s already exists", email),
	}
}

func NewInvalidAmountError(amount string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount: %s", amount),
	}
}

func NewInsufficientFundsError(merchantID, balance, amount string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInsufficientFunds,
		Message: fmt.Sprintf("merchant %s has insufficient funds: balance %s, requested %s", merchantID, balance, amount),
	}
}

func NewCurrencyMismatchError(expected, got string) *DomainError {
	return &DomainError{
		Code:    ErrCodeCurrencyMismatch,
		Message: fmt.Sprintf("currency mismatch: account holds %s, got %s", expected, got),
	}
}

func NewInvalidHistoryError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidHistory,
		Message: fmt.Sprintf("invalid event history: %s", reason),
	}
}

func NewInvalidMerchantError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidMerchant,
		Message: fmt.Sprintf("invalid merchant: %s", reason),
	}
}

func NewPaymentReversedError(reference string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentReversed,
		Message: fmt.Sprintf("debit refused: %s was already refunded", reference),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsBusinessRejection reports whether err is a refusal by the balance
// collaborator, as opposed to a failure to reach it.
func IsBusinessRejection(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return businessRejections[domainErr.Code]
	}
	return false
}

// TransportError is returned when a remote call could not be completed:
// timeouts, connection failures or an error status from the collaborator.
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the same request could succeed.
// Request timeouts and rate limiting are transient like any 5xx.
func (e *TransportError) IsRetryable() bool {
	switch {
	case e.StatusCode == 0, e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	}
	return false
}

func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
