// Package pricing is the single place order money math lives. Cart display,
// storefront checkout, and the POS all price through these functions, so a
// total persisted on an order is always reproducible from its items.
//
// All arithmetic is decimal; intermediate sums are kept at full precision
// and only rounded to 2 decimal places at the persistence boundary.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidPercent is returned for a discount percent outside [0, 100].
var ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")

var oneHundred = decimal.NewFromInt(100)

// Line is one priced order line: a unit price, the price deltas of the
// selected options, and a quantity.
type Line struct {
	UnitPrice    decimal.Decimal
	OptionDeltas []decimal.Decimal
	Quantity     int32
}

// LineTotal computes (unit_price + Σ option deltas) × quantity.
// Quantity below 1 means the line is gone from the cart, so its total is
// zero; interpreting removal is the caller's job, not an error here.
func LineTotal(unitPrice decimal.Decimal, optionDeltas []decimal.Decimal, quantity int32) decimal.Decimal {
	if quantity < 1 {
		return decimal.Zero
	}
	effective := unitPrice
	for _, delta := range optionDeltas {
		effective = effective.Add(delta)
	}
	return effective.Mul(decimal.NewFromInt32(quantity))
}

// Subtotal sums the line totals of all lines, unrounded.
func Subtotal(lines []Line) decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.UnitPrice, l.OptionDeltas, l.Quantity))
	}
	return subtotal
}

// DiscountAmount computes the POS discount: round(subtotal × percent / 100, 2).
// A zero percent yields a zero amount.
func DiscountAmount(subtotal, percent decimal.Decimal) (decimal.Decimal, error) {
	if percent.IsNegative() || percent.GreaterThan(oneHundred) {
		return decimal.Zero, ErrInvalidPercent
	}
	return subtotal.Mul(percent).Div(oneHundred).Round(2), nil
}

// POSTotal is subtotal − discount, never negative.
func POSTotal(subtotal, discountAmount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discountAmount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// TaxAmount computes subtotal × rate, rounded to 2 decimal places.
// Online orders only; POS sales are tax-inclusive.
func TaxAmount(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Round(2)
}

// DeliveryTotal is subtotal + tax + delivery fee.
func DeliveryTotal(subtotal, taxAmount, deliveryFee decimal.Decimal) decimal.Decimal {
	return subtotal.Add(taxAmount).Add(deliveryFee)
}
