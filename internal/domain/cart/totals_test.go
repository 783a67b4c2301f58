package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name         string
		items        []LineItem
		wantCount    int
		wantSubtotal string
		wantMRP      string
		wantDiscount string
	}{
		{
			name:         "empty cart",
			wantSubtotal: "0",
			wantMRP:      "0",
			wantDiscount: "0",
		},
		{
			name: "single item is linear in quantity",
			items: []LineItem{
				{ItemID: "1", ProductID: "1", Quantity: 2, Variant: newVariant("a", 100, 150)},
			},
			wantCount:    2,
			wantSubtotal: "200",
			wantMRP:      "300",
			wantDiscount: "100",
		},
		{
			name: "multiple items",
			items: []LineItem{
				{ItemID: "1", ProductID: "1", Quantity: 2, Variant: newVariant("a", 1000, 1200)},
				{ItemID: "2", ProductID: "2", Quantity: 3, Variant: newVariant("b", 50, 50)},
			},
			wantCount:    5,
			wantSubtotal: "2150",
			wantMRP:      "2550",
			wantDiscount: "400",
		},
		{
			name: "missing variant contributes zero money",
			items: []LineItem{
				{ItemID: "1", ProductID: "1", Quantity: 4},
				{ItemID: "2", ProductID: "2", Quantity: 1, Variant: newVariant("b", 10, 15)},
			},
			wantCount:    5,
			wantSubtotal: "10",
			wantMRP:      "15",
			wantDiscount: "5",
		},
		{
			name: "fractional prices",
			items: []LineItem{
				{ItemID: "1", ProductID: "1", Quantity: 3, Variant: &Variant{
					ID:    "x",
					Price: decimal.RequireFromString("9.99"),
					MRP:   decimal.RequireFromString("12.50"),
				}},
			},
			wantCount:    3,
			wantSubtotal: "29.97",
			wantMRP:      "37.5",
			wantDiscount: "7.53",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items)

			assert.Equal(t, tt.wantCount, got.ItemCount)
			assert.True(t, decimal.RequireFromString(tt.wantSubtotal).Equal(got.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, decimal.RequireFromString(tt.wantMRP).Equal(got.MRPTotal), "mrp %s", got.MRPTotal)
			assert.True(t, decimal.RequireFromString(tt.wantDiscount).Equal(got.Discount), "discount %s", got.Discount)
		})
	}
}
