package domain

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Tolerance used when comparing quantities that went through the store.
var Tolerance = decimal.New(1, -6)

// ParseAmount parses a user supplied quantity. Only finite positive numbers are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(strings.TrimLeft(trimmed, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Zero, errors.Wrapf(ErrValidation, "amount %q is not a finite number", s)
	}

	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrValidation, "amount %q is not a number", s)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// AmountFromFloat converts a float quantity, rejecting NaN and infinities.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, errors.Wrapf(ErrValidation, "amount %v is not a finite number", f)
	}
	amount := decimal.NewFromFloat(f)
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ValidateAmount checks that amount is strictly positive.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrapf(ErrValidation, "amount must be greater than 0, got %s", amount.String())
	}
	return nil
}

// ApproxEqual compares two quantities within Tolerance.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
