package orders

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotalsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cents := func(max int64) decimal.Decimal {
		return decimal.New(rng.Int63n(max), -2)
	}
	for i := 0; i < 500; i++ {
		subtotal := cents(1_000_000)
		discount := cents(50_000)
		shipping := cents(5_000)
		tax := cents(10_000)
		fee := cents(1_000)

		totals := ComputeTotals(subtotal, discount, shipping, tax, fee)
		expected := totals.Subtotal.Sub(totals.Discount).Add(totals.ShippingCost).Add(totals.Tax).Add(totals.PaymentFee)
		assert.True(t, totals.Total.Equal(expected))
		assert.False(t, totals.Total.IsNegative())
		assert.True(t, totals.Matches(totals.Total.Add(decimal.New(1, -2))))
		assert.False(t, totals.Matches(totals.Total.Add(decimal.New(2, -2))))
	}
}

func TestComputeTotalsClampsDiscount(t *testing.T) {
	totals := ComputeTotals(decimal.NewFromInt(20), decimal.NewFromInt(35), decimal.NewFromInt(5), decimal.Zero, decimal.Zero)
	assert.Equal(t, "20.00", totals.Discount.StringFixed(2))
	assert.Equal(t, "5.00", totals.Total.StringFixed(2))

	totals = ComputeTotals(decimal.NewFromInt(20), decimal.NewFromInt(-3), decimal.Zero, decimal.Zero, decimal.Zero)
	assert.True(t, totals.Discount.IsZero())
}

func TestSubtotalSumsLines(t *testing.T) {
	items := []ItemInput{
		{ProductID: "a", Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		{ProductID: "b", Quantity: 3, UnitPrice: decimal.RequireFromString("0.35")},
	}
	assert.Equal(t, "101.05", Subtotal(items).StringFixed(2))
}
