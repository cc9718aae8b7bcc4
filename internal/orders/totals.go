package orders

import (
	"github.com/shopspring/decimal"
)

// TotalTolerance is the largest accepted gap between a client-supplied total and the computed one.
var TotalTolerance = decimal.New(1, -2)

// Totals holds the money fields of an order.
type Totals struct {
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	PaymentFee   decimal.Decimal
	Total        decimal.Decimal
}

// Subtotal sums quantity times unit price over the items.
func Subtotal(items []ItemInput) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineTotal(item))
	}
	return sum.Round(2)
}

// LineTotal is quantity times unit price.
func LineTotal(item ItemInput) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}

// ComputeTotals derives the order total. The discount is bounded to [0, subtotal]
// so total = subtotal - discount + shipping + tax + fee never goes below the charges.
func ComputeTotals(subtotal, discount, shipping, tax, fee decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	discount = discount.Round(2)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	shipping = shipping.Round(2)
	tax = tax.Round(2)
	fee = fee.Round(2)
	return Totals{
		Subtotal:     subtotal,
		Discount:     discount,
		ShippingCost: shipping,
		Tax:          tax,
		PaymentFee:   fee,
		Total:        subtotal.Sub(discount).Add(shipping).Add(tax).Add(fee),
	}
}

// Matches reports whether a client-supplied total agrees with the computed total within tolerance.
func (t Totals) Matches(claimed decimal.Decimal) bool {
	return claimed.Sub(t.Total).Abs().LessThanOrEqual(TotalTolerance)
}
