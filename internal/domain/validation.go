package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits carried on the wire.
const AmountScale = 4

// ValidateAmount checks that a deposit or withdrawal amount is positive.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidTransaction, amount)
	}
	return nil
}

// ParseAmount parses a decimal string with at most AmountScale significant
// fractional digits. An empty string yields an invalid NullDecimal.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: amount %q: %v", ErrMalformedRecord, s, err)
	}

	if d.Exponent() < -AmountScale && !d.Equal(d.Truncate(AmountScale)) {
		return decimal.NullDecimal{}, fmt.Errorf("%w: amount %q exceeds %d fractional digits", ErrMalformedRecord, s, AmountScale)
	}

	return decimal.NewNullDecimal(d), nil
}
