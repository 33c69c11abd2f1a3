package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// envelope mirrors the API response wrapper with a typed payload.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Payment struct {
	ID       string `json:"id"`
	PayerID  string `json:"payer_id"`
	PayeeID  string `json:"payee_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type PaymentEvent struct {
	Sequence int64  `json:"sequence"`
	Type     string `json:"type"`
	Status   string `json:"status"`
}

type Merchant struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// APIError is returned by TestClient when the service answers with an
// error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

// TestClient wraps HTTP calls to the payments API.
type TestClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func do[T any](t *testing.T, c *TestClient, method, path string, body any) (T, error) {
	t.Helper()
	var zero T

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return zero, apiErr
	}
	return env.Data, nil
}

func (c *TestClient) RegisterMerchant(t *testing.T, email, openingBalance string) (Merchant, error) {
	return do[Merchant](t, c, http.MethodPost, "/merchants", map[string]string{
		"name":            "merchant " + email,
		"email":           email,
		"opening_balance": openingBalance,
		"currency":        "USD",
	})
}

func (c *TestClient) GetMerchant(t *testing.T, id string) (Merchant, error) {
	return do[Merchant](t, c, http.MethodGet, "/merchants/"+id, nil)
}

func (c *TestClient) CreatePayment(t *testing.T, payerID, payeeID, amount string) (Payment, error) {
	return do[Payment](t, c, http.MethodPost, "/payments", map[string]string{
		"payer_id": payerID,
		"payee_id": payeeID,
		"amount":   amount,
		"currency": "USD",
	})
}

func (c *TestClient) GetPayment(t *testing.T, id string) (Payment, error) {
	return do[Payment](t, c, http.MethodGet, "/payments/"+id, nil)
}

func (c *TestClient) PaymentEvents(t *testing.T, id string) ([]PaymentEvent, error) {
	return do[[]PaymentEvent](t, c, http.MethodGet, "/payments/"+id+"/events", nil)
}
