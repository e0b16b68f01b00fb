package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxCents_TruncatesTowardZero(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		want     int64
	}{
		{"zero", 0, 0},
		{"exact", 100_000, 19_000},
		{"truncates", 1, 0},
		{"truncates fraction", 99, 18}, // 99 * 19 / 100 = 18.81
		{"large", 1_000_000, 190_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, taxCents(tt.subtotal))
		})
	}
}

func TestShippingCents_Boundaries(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		count    int
		want     int64
	}{
		{"empty cart", 0, 0, 0},
		{"below threshold", 199_999, 1, BaseShippingCents},
		{"at threshold", 200_000, 1, 0},
		{"above threshold", 350_000, 2, 0},
		{"cheap cart", 1_000, 3, BaseShippingCents},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shippingCents(tt.subtotal, tt.count))
		})
	}
}

func TestComputeTotals_QuoteOverride(t *testing.T) {
	items := []CartLine{
		{UnitPriceCents: 250_000, Quantity: 1},
	}

	free := computeTotals(items, nil)
	assert.Equal(t, int64(0), free.ShippingCents)

	quote := int64(30_000)
	quoted := computeTotals(items, &quote)
	assert.Equal(t, quote, quoted.ShippingCents)
	assert.Equal(t, free.SubtotalCents+free.TaxCents+quote, quoted.TotalCents)
}

func TestComputeTotals_TotalIsSumOfParts(t *testing.T) {
	items := []CartLine{
		{UnitPriceCents: 12_345, Quantity: 3},
		{UnitPriceCents: 999, Quantity: 7},
	}
	tot := computeTotals(items, nil)
	assert.Equal(t, tot.SubtotalCents+tot.TaxCents+tot.ShippingCents, tot.TotalCents)
	assert.Equal(t, 10, tot.ItemCount)
}

func TestStockCeiling_Fallbacks(t *testing.T) {
	assert.Equal(t, defaultStockCeiling, CartLine{}.stockCeiling())

	l := CartLine{StockAvailable: intPtr(7)}
	assert.Equal(t, 7, l.stockCeiling())

	l.MaxStock = intPtr(3)
	assert.Equal(t, 3, l.stockCeiling(), "explicit per-order max beats raw stock")
}

func TestSameVariant(t *testing.T) {
	base := CartLine{ProductID: 1, VariantAttrs: map[string]string{"talla": "M", "color": "rojo"}}

	same := CartLine{ProductID: 1, VariantAttrs: map[string]string{"color": "rojo", "talla": "M"}}
	assert.True(t, sameVariant(base, same))

	otherProduct := CartLine{ProductID: 2, VariantAttrs: base.VariantAttrs}
	assert.False(t, sameVariant(base, otherProduct))

	otherAttr := CartLine{ProductID: 1, VariantAttrs: map[string]string{"talla": "L", "color": "rojo"}}
	assert.False(t, sameVariant(base, otherAttr))

	fewerAttrs := CartLine{ProductID: 1, VariantAttrs: map[string]string{"talla": "M"}}
	assert.False(t, sameVariant(base, fewerAttrs))

	noAttrs := CartLine{ProductID: 1}
	assert.True(t, sameVariant(noAttrs, CartLine{ProductID: 1}))
}
