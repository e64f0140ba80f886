package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

func TestCeilingPrice(t *testing.T) {
	tests := []struct {
		name   string
		grade  enums.Grade
		origin enums.Origin
		want   int64
		ok     bool
	}{
		{name: "w240 india", grade: enums.GradeW240, origin: enums.OriginIndia, want: 8300, ok: true},
		{name: "any origin has no ceiling", grade: enums.GradeW240, origin: enums.OriginAny},
		{name: "missing pair", grade: enums.GradeBB, origin: enums.OriginCambodia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CeilingPrice(tt.grade, tt.origin)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
			}
		})
	}
}

func TestValidatePrice(t *testing.T) {
	require.NoError(t, ValidatePrice(decimal.NewFromInt(8000), enums.GradeW240, enums.OriginIndia))
	require.NoError(t, ValidatePrice(decimal.NewFromInt(8300), enums.GradeW240, enums.OriginIndia))
	require.NoError(t, ValidatePrice(decimal.NewFromInt(99999), enums.GradeW240, enums.OriginAny))

	err := ValidatePrice(decimal.RequireFromString("8300.01"), enums.GradeW240, enums.OriginIndia)
	require.Error(t, err)
	assert.Equal(t, ReasonPriceExceedsCeiling, pkgerrors.ReasonOf(err))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "8300", details["ceiling"])

	err = ValidatePrice(decimal.Zero, enums.GradeW240, enums.OriginIndia)
	assert.Equal(t, ReasonInvalidPrice, pkgerrors.ReasonOf(err))
}

func TestValidatePositiveFitsPriceColumn(t *testing.T) {
	require.NoError(t, ValidatePositive(decimal.RequireFromString("0.01")))
	require.NoError(t, ValidatePositive(decimal.RequireFromString("8200.50")))
	require.NoError(t, ValidatePositive(decimal.RequireFromString("9999999999999999.99")))

	for _, raw := range []string{"0.004", "8200.001", "10000000000000000"} {
		price := decimal.RequireFromString(raw)
		err := ValidatePositive(price)
		require.Error(t, err, raw)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), raw)
		assert.Equal(t, ReasonInvalidPrice, pkgerrors.ReasonOf(err), raw)
	}

	terms := Terms{Grade: enums.GradeW240, Origin: enums.OriginAny, ExpectedPrice: decimal.NewFromInt(1), AllowLowerBid: true}
	assert.Equal(t, ReasonInvalidPrice, pkgerrors.ReasonOf(ValidateQuotePrice(decimal.RequireFromString("0.004"), terms)))
}

func TestValidateFloor(t *testing.T) {
	terms := Terms{Grade: enums.GradeW240, Origin: enums.OriginIndia, ExpectedPrice: decimal.NewFromInt(8000)}

	err := ValidateFloor(decimal.NewFromInt(7900), terms)
	require.Error(t, err)
	assert.Equal(t, ReasonPriceBelowFloor, pkgerrors.ReasonOf(err))

	require.NoError(t, ValidateFloor(decimal.NewFromInt(8000), terms))

	terms.AllowLowerBid = true
	require.NoError(t, ValidateFloor(decimal.NewFromInt(7900), terms))
	assert.Equal(t, ReasonInvalidPrice, pkgerrors.ReasonOf(ValidateFloor(decimal.NewFromInt(-1), terms)))
}

func TestValidateQuotePriceChecksCeilingToo(t *testing.T) {
	terms := Terms{Grade: enums.GradeW240, Origin: enums.OriginIndia, ExpectedPrice: decimal.NewFromInt(8000)}
	require.NoError(t, ValidateQuotePrice(decimal.NewFromInt(8200), terms))
	assert.Equal(t, ReasonPriceExceedsCeiling, pkgerrors.ReasonOf(ValidateQuotePrice(decimal.NewFromInt(8400), terms)))
}

func TestTableSorted(t *testing.T) {
	table := Table()
	require.NotEmpty(t, table)
	for i := 1; i < len(table); i++ {
		prev, cur := table[i-1], table[i]
		assert.True(t, prev.Grade < cur.Grade || (prev.Grade == cur.Grade && prev.Origin < cur.Origin))
	}
}
