package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Merchant is an account held by the balance collaborator. Payers and
// payees are both merchants.
type Merchant struct {
	ID       uuid.UUID
	Name     string
	Email    string
	Phone    string
	Balance  decimal.Decimal
	Currency string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewMerchant(name, email, phone string, openingBalance decimal.Decimal, currency string) (*Merchant, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, NewInvalidMerchantError("currency is required")
	}
	if !ValidCurrency(currency) {
		return nil, NewInvalidMerchantError("currency must be a three-letter code")
	}
	if openingBalance.IsNegative() {
		return nil, NewInvalidAmountError(openingBalance.String())
	}
	if !openingBalance.IsZero() {
		if err := ValidateAmount(openingBalance, currency); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	return &Merchant{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Phone:     strings.TrimSpace(phone),
		Balance:   openingBalance,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds amount to the balance.
func (m *Merchant) Credit(amount decimal.Decimal, currency string) error {
	if err := m.checkOperation(amount, currency); err != nil {
		return err
	}
	m.Balance = m.Balance.Add(amount)
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Debit removes amount from the balance. The balance never goes negative.
func (m *Merchant) Debit(amount decimal.Decimal, currency string) error {
	if err := m.checkOperation(amount, currency); err != nil {
		return err
	}
	if m.Balance.LessThan(amount) {
		return NewInsufficientFundsError(m.ID.String(), m.Balance.String(), amount.String())
	}
	m.Balance = m.Balance.Sub(amount)
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Merchant) checkOperation(amount decimal.Decimal, currency string) error {
	if !strings.EqualFold(m.Currency, strings.TrimSpace(currency)) {
		return NewCurrencyMismatchError(m.Currency, currency)
	}
	return ValidateAmount(amount, m.Currency)
}
