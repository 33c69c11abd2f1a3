package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const defaultMinorUnits int32 = 2

// maxAmount is the exclusive upper bound of a stored amount. Balances and
// payment amounts are persisted as NUMERIC(19,4).
var maxAmount = decimal.New(1, 15)

var minorUnits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"BHD": 3,
	"KWD": 3,
}

// MinorUnits returns the number of fractional digits allowed for a currency.
func MinorUnits(currency string) int32 {
	if units, ok := minorUnits[strings.ToUpper(currency)]; ok {
		return units
	}
	return defaultMinorUnits
}

// ValidCurrency reports whether currency is a three-letter code.
func ValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, r := range currency {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// WithinRange reports whether amount fits the storage bound.
func WithinRange(amount decimal.Decimal) bool {
	return amount.Abs().LessThan(maxAmount)
}

// ValidateAmount checks that amount is strictly positive, within the
// storage bound and representable in the currency's minor units. Trailing
// zeros beyond the scale are accepted because the value is unchanged by
// rounding.
func ValidateAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() || !WithinRange(amount) {
		return NewInvalidAmountError(amount.String())
	}
	if !amount.Equal(amount.Round(MinorUnits(currency))) {
		return NewInvalidAmountError(amount.String())
	}
	return nil
}
