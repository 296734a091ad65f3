// Package pricing computes order totals. It is pure arithmetic: no I/O, no
// clock, so the same inputs always produce the same totals.
package pricing

import "github.com/shopspring/decimal"

// Pricing parameters. Vars rather than consts because decimal values cannot
// be constants.
var (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(500)
	// FlatShippingFee is charged when the subtotal does not exceed the
	// threshold.
	FlatShippingFee = decimal.NewFromInt(50)
	// TaxRate is applied to the order subtotal.
	TaxRate = decimal.NewFromFloat(0.05)
	// CODSurcharge is added for cash-on-delivery orders.
	CODSurcharge = decimal.NewFromInt(20)
)

// LineItem is one priced order line.
type LineItem struct {
	Price    decimal.Decimal
	Quantity int
}

// Totals is the full pricing breakdown of an order.
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	CODSurcharge decimal.Decimal
	Total        decimal.Decimal
}

// Subtotal sums price times quantity over the lines.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum.Round(2)
}

// ComputeTotals prices an order. Shipping is free only when the subtotal
// strictly exceeds the threshold; tax applies to the full subtotal, before
// the discount; the total never goes below zero.
func ComputeTotals(items []LineItem, discount decimal.Decimal, cod bool) Totals {
	subtotal := Subtotal(items)

	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	shipping := FlatShippingFee
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(TaxRate).Round(2)

	surcharge := decimal.Zero
	if cod {
		surcharge = CODSurcharge
	}

	total := subtotal.Sub(discount).Add(shipping).Add(tax).Add(surcharge)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Discount:     discount,
		CODSurcharge: surcharge,
		Total:        total.Round(2),
	}
}
