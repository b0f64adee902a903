package pricing

import (
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSubtotalAndPayableScenario(t *testing.T) {
	calc := NewCalculator(d("10.00"), "usd")
	a, b := uuid.New(), uuid.New()
	items := []Item{{VariantID: a, Quantity: 2}, {VariantID: b, Quantity: 1}}
	prices := map[uuid.UUID]decimal.Decimal{a: d("20.00"), b: d("15.00")}

	subtotal, err := calc.Subtotal(items, prices)
	require.NoError(t, err)
	assert.Equal(t, "55.00", subtotal.StringFixed(2))
	assert.Equal(t, "65.00", calc.Payable(subtotal).StringFixed(2))

	quote, err := calc.Quote(items, prices)
	require.NoError(t, err)
	assert.Equal(t, "55.00", quote.Subtotal.StringFixed(2))
	assert.Equal(t, "10.00", quote.Shipping.StringFixed(2))
	assert.Equal(t, "65.00", quote.Payable.StringFixed(2))
	assert.Equal(t, int64(6500), quote.PayableMinor())
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, "40.00", quote.Lines[0].LineTotal.StringFixed(2))
}

func TestQuoteUsesCurrentPrices(t *testing.T) {
	calc := NewCalculator(d("10"), "usd")
	v := uuid.New()
	items := []Item{{VariantID: v, Quantity: 3}}

	first, err := calc.Quote(items, map[uuid.UUID]decimal.Decimal{v: d("1.10")})
	require.NoError(t, err)
	second, err := calc.Quote(items, map[uuid.UUID]decimal.Decimal{v: d("2.00")})
	require.NoError(t, err)

	assert.Equal(t, "3.30", first.Subtotal.StringFixed(2))
	assert.Equal(t, "6.00", second.Subtotal.StringFixed(2))
}

func TestQuoteAvoidsFloatDrift(t *testing.T) {
	calc := NewCalculator(d("0"), "usd")
	v := uuid.New()
	quote, err := calc.Quote([]Item{{VariantID: v, Quantity: 3}}, map[uuid.UUID]decimal.Decimal{v: d("0.10")})
	require.NoError(t, err)
	assert.True(t, quote.Subtotal.Equal(d("0.30")))
	assert.Equal(t, int64(30), quote.PayableMinor())
}

func TestEmptyQuoteHasNoShipping(t *testing.T) {
	calc := NewCalculator(d("10.00"), "usd")
	quote, err := calc.Quote(nil, nil)
	require.NoError(t, err)
	assert.True(t, quote.Subtotal.IsZero())
	assert.True(t, quote.Shipping.IsZero())
	assert.True(t, quote.Payable.IsZero())
	assert.Empty(t, quote.Lines)
}

func TestQuoteRejectsUnknownVariantAndBadQuantity(t *testing.T) {
	calc := NewCalculator(d("10.00"), "usd")
	v := uuid.New()

	_, err := calc.Quote([]Item{{VariantID: v, Quantity: 1}}, map[uuid.UUID]decimal.Decimal{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = calc.Subtotal([]Item{{VariantID: v, Quantity: 0}}, map[uuid.UUID]decimal.Decimal{v: d("1")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMinorUnitsRounds(t *testing.T) {
	assert.Equal(t, int64(1999), MinorUnits(d("19.99")))
	assert.Equal(t, int64(1000), MinorUnits(d("9.995")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
}
