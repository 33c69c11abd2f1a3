// Package merchant is the HTTP client for a remote balance collaborator.
package merchant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/DanielPopoola/payment-ledger/internal/config"
	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type balanceRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reference  string          `json:"reference"`
	ReversedBy string          `json:"reversed_by,omitempty"`
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPClient calls /merchants/{id}/debit and /merchants/{id}/credit on a
// remote service that speaks the same API as this one.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(cfg config.MerchantClientConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *HTTPClient) Debit(ctx context.Context, req domain.BalanceRequest) error {
	return c.post(ctx, "debit", req)
}

func (c *HTTPClient) Credit(ctx context.Context, req domain.BalanceRequest) error {
	return c.post(ctx, "credit", req)
}

func (c *HTTPClient) post(ctx context.Context, operation string, req domain.BalanceRequest) error {
	body, err := json.Marshal(balanceRequest{
		Amount:     req.Amount,
		Currency:   req.Currency,
		Reference:  req.Reference,
		ReversedBy: req.ReversedBy,
	})
	if err != nil {
		return fmt.Errorf("error marshalling json: %w", err)
	}

	url := fmt.Sprintf("%s/merchants/%s/%s", c.baseURL, req.AccountID, operation)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if req.Reference != "" {
		httpReq.Header.Set("Idempotency-Key", req.Reference)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &domain.TransportError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	payload, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
		return &domain.TransportError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Err:        errors.New(string(payload)),
		}
	}

	return rejection(req.AccountID, resp.StatusCode, payload)
}

// rejection turns a 4xx answer into the DomainError the remote side
// reported.
func rejection(accountID uuid.UUID, status int, payload []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error != nil && envelope.Error.Code != "" {
		return &domain.DomainError{
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
		}
	}

	if status == http.StatusNotFound {
		return domain.NewMerchantNotFoundError(accountID.String())
	}
	return &domain.DomainError{
		Code:    fmt.Sprintf("HTTP_%d", status),
		Message: fmt.Sprintf("merchant service returned status %d: %s", status, string(payload)),
	}
}
