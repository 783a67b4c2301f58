package cart

import (
	"github.com/shopspring/decimal"
)

// Totals holds the values derived from the cart line items.
type Totals struct {
	ItemCount int
	Subtotal  decimal.Decimal
	MRPTotal  decimal.Decimal
	// Discount is the MRP total minus the subtotal.
	Discount decimal.Decimal
}

// ComputeTotals derives item count, subtotal, MRP total and discount from the
// given items. An item without a variant counts towards ItemCount but
// contributes zero to every monetary total.
func ComputeTotals(items []LineItem) Totals {
	t := Totals{
		Subtotal: decimal.Zero,
		MRPTotal: decimal.Zero,
		Discount: decimal.Zero,
	}
	for _, li := range items {
		t.ItemCount += li.Quantity
		if li.Variant == nil {
			continue
		}

		qty := decimal.NewFromInt(int64(li.Quantity))
		price := li.Variant.Price.Mul(qty)
		mrp := li.Variant.MRP.Mul(qty)

		t.Subtotal = t.Subtotal.Add(price)
		t.MRPTotal = t.MRPTotal.Add(mrp)
		t.Discount = t.Discount.Add(mrp.Sub(price))
	}
	return t
}
