// Package pricing holds the grade/origin ceiling table and the price checks
// applied to requirements and quotes.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

const (
	ReasonPriceExceedsCeiling pkgerrors.Reason = "PRICE_EXCEEDS_CEILING"
	ReasonPriceBelowFloor     pkgerrors.Reason = "PRICE_BELOW_FLOOR"
	ReasonInvalidPrice        pkgerrors.Reason = "INVALID_PRICE"
)

// Scale and Limit match the numeric(18,2) price columns.
const Scale = 2

var Limit = decimal.New(1, 18-Scale)

type key struct {
	grade  enums.Grade
	origin enums.Origin
}

// Per-unit ceilings. Pairs missing from the table are unconstrained.
var ceilings = map[key]int64{
	{enums.GradeW180, enums.OriginIndia}:        9800,
	{enums.GradeW180, enums.OriginVietnam}:      9400,
	{enums.GradeW210, enums.OriginIndia}:        9000,
	{enums.GradeW210, enums.OriginVietnam}:      8700,
	{enums.GradeW240, enums.OriginIndia}:        8300,
	{enums.GradeW240, enums.OriginVietnam}:      8000,
	{enums.GradeW240, enums.OriginIvoryCoast}:   7700,
	{enums.GradeW240, enums.OriginTanzania}:     7800,
	{enums.GradeW320, enums.OriginIndia}:        7600,
	{enums.GradeW320, enums.OriginVietnam}:      7300,
	{enums.GradeW320, enums.OriginIvoryCoast}:   7000,
	{enums.GradeW320, enums.OriginBenin}:        7050,
	{enums.GradeW320, enums.OriginTanzania}:     7100,
	{enums.GradeW450, enums.OriginIndia}:        7000,
	{enums.GradeW450, enums.OriginVietnam}:      6800,
	{enums.GradeSW240, enums.OriginIndia}:       7200,
	{enums.GradeSW320, enums.OriginIndia}:       6700,
	{enums.GradeLWP, enums.OriginIndia}:         5600,
	{enums.GradeLWP, enums.OriginVietnam}:       5400,
	{enums.GradeSWP, enums.OriginIndia}:         5000,
	{enums.GradeBB, enums.OriginIndia}:          4500,
	{enums.GradeW320, enums.OriginGuineaBissau}: 6900,
}

// Terms is the subset of a requirement the price checks need.
type Terms struct {
	Grade         enums.Grade
	Origin        enums.Origin
	ExpectedPrice decimal.Decimal
	AllowLowerBid bool
}

// CeilingPrice looks up the ceiling for the pair. ok is false for the "any"
// origin and for pairs without an entry.
func CeilingPrice(grade enums.Grade, origin enums.Origin) (ceiling decimal.Decimal, ok bool) {
	if origin == enums.OriginAny {
		return decimal.Zero, false
	}
	value, ok := ceilings[key{grade: grade, origin: origin}]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(value), true
}

// ValidatePositive rejects zero and negative prices, and prices the price
// columns cannot hold exactly.
func ValidatePositive(price decimal.Decimal) error {
	switch {
	case !price.IsPositive():
		return invalidPrice(price, "price must be greater than zero", nil)
	case !price.Equal(price.Truncate(Scale)):
		return invalidPrice(price, "price has too many decimal places", map[string]any{"max_decimal_places": Scale})
	case price.GreaterThanOrEqual(Limit):
		return invalidPrice(price, "price is too large", map[string]any{"limit": Limit.String()})
	}
	return nil
}

func invalidPrice(price decimal.Decimal, msg string, extra map[string]any) error {
	details := map[string]any{"price": price.String()}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithReason(ReasonInvalidPrice).
		WithDetails(details)
}

// ValidatePrice fails when a ceiling exists and proposed exceeds it.
func ValidatePrice(proposed decimal.Decimal, grade enums.Grade, origin enums.Origin) error {
	if err := ValidatePositive(proposed); err != nil {
		return err
	}
	ceiling, ok := CeilingPrice(grade, origin)
	if !ok || proposed.LessThanOrEqual(ceiling) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "price exceeds ceiling for grade and origin").
		WithReason(ReasonPriceExceedsCeiling).
		WithDetails(map[string]any{
			"price":   proposed.String(),
			"ceiling": ceiling.String(),
			"grade":   grade,
			"origin":  origin,
		})
}

// ValidateFloor applies the quote-side floor: without AllowLowerBid a quote may
// not undercut the buyer's expected price.
func ValidateFloor(price decimal.Decimal, terms Terms) error {
	if err := ValidatePositive(price); err != nil {
		return err
	}
	if terms.AllowLowerBid || price.GreaterThanOrEqual(terms.ExpectedPrice) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "price is below the expected price").
		WithReason(ReasonPriceBelowFloor).
		WithDetails(map[string]any{
			"price":          price.String(),
			"expected_price": terms.ExpectedPrice.String(),
		})
}

// ValidateQuotePrice runs the floor check followed by the ceiling check.
func ValidateQuotePrice(price decimal.Decimal, terms Terms) error {
	if err := ValidateFloor(price, terms); err != nil {
		return err
	}
	return ValidatePrice(price, terms.Grade, terms.Origin)
}

// Ceiling is one row of the published table.
type Ceiling struct {
	Grade   enums.Grade     `json:"grade"`
	Origin  enums.Origin    `json:"origin"`
	Ceiling decimal.Decimal `json:"ceiling"`
}

// Table returns the ceilings sorted by grade then origin.
func Table() []Ceiling {
	out := make([]Ceiling, 0, len(ceilings))
	for k, v := range ceilings {
		out = append(out, Ceiling{Grade: k.grade, Origin: k.origin, Ceiling: decimal.NewFromInt(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Grade != out[j].Grade {
			return out[i].Grade < out[j].Grade
		}
		return out[i].Origin < out[j].Origin
	})
	return out
}
