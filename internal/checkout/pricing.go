package checkout

// Colombian storefront pricing. All amounts are int64 in the currency minor
// unit; no floats anywhere in the money path.
const (
	// IVAPercent is the Colombian VAT rate applied on the subtotal.
	IVAPercent = 19

	// FreeShippingThresholdCents waives shipping at or above this subtotal.
	FreeShippingThresholdCents int64 = 200_000

	// BaseShippingCents is the flat shipping cost below the threshold.
	BaseShippingCents int64 = 15_000

	// defaultStockCeiling caps a line when no stock information is known.
	defaultStockCeiling = 9999
)

func subtotalCents(items []CartLine) int64 {
	var sum int64
	for _, l := range items {
		sum += l.UnitPriceCents * int64(l.Quantity)
	}
	return sum
}

// taxCents truncates toward zero: subtotal * 19 / 100 in integer math.
func taxCents(subtotal int64) int64 {
	return subtotal * IVAPercent / 100
}

// shippingCents is 0 for an empty cart, 0 at or above the free-shipping
// threshold, and the flat base cost otherwise.
func shippingCents(subtotal int64, itemCount int) int64 {
	if itemCount == 0 {
		return 0
	}
	if subtotal >= FreeShippingThresholdCents {
		return 0
	}
	return BaseShippingCents
}

func itemCount(items []CartLine) int {
	n := 0
	for _, l := range items {
		n += l.Quantity
	}
	return n
}

// computeTotals derives all totals from the cart lines. shippingQuote, when
// non-nil, is an explicit courier quote that overrides the threshold rule.
func computeTotals(items []CartLine, shippingQuote *int64) Totals {
	sub := subtotalCents(items)
	count := itemCount(items)
	ship := shippingCents(sub, count)
	if shippingQuote != nil {
		ship = *shippingQuote
	}
	tax := taxCents(sub)
	return Totals{
		SubtotalCents: sub,
		TaxCents:      tax,
		ShippingCents: ship,
		TotalCents:    sub + tax + ship,
		ItemCount:     count,
	}
}
