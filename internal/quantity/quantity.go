// Package quantity normalizes free-text quantities and checks them against
// requirement bounds.
package quantity

import (
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

const (
	ReasonNotANumber    pkgerrors.Reason = "NOT_A_NUMBER"
	ReasonBelowMinimum  pkgerrors.Reason = "BELOW_MINIMUM"
	ReasonAboveMaximum  pkgerrors.Reason = "ABOVE_MAXIMUM"
	ReasonInvalidBounds pkgerrors.Reason = "INVALID_BOUNDS"
	ReasonTooPrecise    pkgerrors.Reason = "TOO_PRECISE"
	ReasonTooLarge      pkgerrors.Reason = "TOO_LARGE"
)

// Scale and Limit match the numeric(18,3) quantity columns.
const Scale = 3

var Limit = decimal.New(1, 18-Scale)

var separators = strings.NewReplacer(
	",", "",
	"_", "",
	"'", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
)

// Normalize strips thousand separators and parses a non-negative real number
// with at most Scale fractional digits, below Limit.
func Normalize(raw string) (decimal.Decimal, error) {
	cleaned := separators.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, notANumber(raw)
	}
	for _, r := range cleaned {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return decimal.Zero, notANumber(raw)
		}
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, notANumber(raw)
	}
	if value.IsNegative() {
		return decimal.Zero, notANumber(raw)
	}
	if !value.Equal(value.Truncate(Scale)) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity has too many decimal places").
			WithReason(ReasonTooPrecise).
			WithDetails(map[string]any{"input": raw, "max_decimal_places": Scale})
	}
	if value.GreaterThanOrEqual(Limit) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity is too large").
			WithReason(ReasonTooLarge).
			WithDetails(map[string]any{"input": raw, "limit": Limit.String()})
	}
	return value, nil
}

func notANumber(raw string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity is not a number").
		WithReason(ReasonNotANumber).
		WithDetails(map[string]any{"input": raw})
}

// Validate checks min <= proposed <= max.
func Validate(proposed, min, max decimal.Decimal) error {
	if proposed.LessThan(min) {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity below minimum").
			WithReason(ReasonBelowMinimum).
			WithDetails(map[string]any{"quantity": proposed.String(), "minimum": min.String()})
	}
	if proposed.GreaterThan(max) {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity above maximum").
			WithReason(ReasonAboveMaximum).
			WithDetails(map[string]any{"quantity": proposed.String(), "maximum": max.String()})
	}
	return nil
}

// ValidateBounds is the requirement-side check: 0 < minimum <= required.
func ValidateBounds(minimum, required decimal.Decimal) error {
	if !minimum.IsPositive() || !required.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantities must be greater than zero").
			WithReason(ReasonInvalidBounds).
			WithDetails(map[string]any{"minimum_quantity": minimum.String(), "required_quantity": required.String()})
	}
	if err := Validate(minimum, decimal.Zero, required); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "minimum quantity exceeds required quantity").
			WithReason(ReasonInvalidBounds).
			WithDetails(map[string]any{"minimum_quantity": minimum.String(), "required_quantity": required.String()})
	}
	return nil
}

// Parse normalizes raw then validates it against the bounds.
func Parse(raw string, min, max decimal.Decimal) (decimal.Decimal, error) {
	value, err := Normalize(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if err := Validate(value, min, max); err != nil {
		return decimal.Zero, err
	}
	return value, nil
}
