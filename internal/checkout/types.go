package checkout

// Step is one stage of the linear checkout flow.
type Step string

const (
	StepCart         Step = "cart"
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

// stepOrder fixes the forward direction of the flow.
var stepOrder = []Step{StepCart, StepShipping, StepPayment, StepConfirmation}

func stepIndex(s Step) int {
	for i, v := range stepOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// ValidStep reports whether s names a known checkout step.
func ValidStep(s Step) bool { return stepIndex(s) >= 0 }

// CartLine is one product+variant entry in the cart. Two adds with the same
// ProductID and identical VariantAttrs merge into a single line.
type CartLine struct {
	ID             string            `json:"id"`
	ProductID      int64             `json:"product_id"`
	VariantID      int64             `json:"variant_id,omitempty"`
	Name           string            `json:"name"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	Quantity       int               `json:"quantity"`
	ImageURL       *string           `json:"image_url,omitempty"`
	SKU            *string           `json:"sku,omitempty"`
	VariantAttrs   map[string]string `json:"variant_attributes,omitempty"`
	VendorID       *int64            `json:"vendor_id,omitempty"`
	VendorName     *string           `json:"vendor_name,omitempty"`
	StockAvailable *int              `json:"stock_available,omitempty"`
	MaxStock       *int              `json:"max_stock,omitempty"`
}

// stockCeiling is the maximum quantity this line may hold:
// MaxStock if known, else StockAvailable, else defaultStockCeiling.
func (l CartLine) stockCeiling() int {
	if l.MaxStock != nil {
		return *l.MaxStock
	}
	if l.StockAvailable != nil {
		return *l.StockAvailable
	}
	return defaultStockCeiling
}

// sameVariant reports whether two lines are the same product+variant
// selection. Attribute order is irrelevant.
func sameVariant(a, b CartLine) bool {
	if a.ProductID != b.ProductID || len(a.VariantAttrs) != len(b.VariantAttrs) {
		return false
	}
	for k, v := range a.VariantAttrs {
		if b.VariantAttrs[k] != v {
			return false
		}
	}
	return true
}

// ShippingAddress is a delivery destination. At most one saved address may
// have IsDefault set; setting a new default demotes the rest.
type ShippingAddress struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	Department     *string `json:"department,omitempty"`
	PostalCode     *string `json:"postal_code,omitempty"`
	IsDefault      bool    `json:"is_default,omitempty"`
	AdditionalInfo *string `json:"additional_info,omitempty"`
}

// PaymentSelection is the chosen payment method plus method-specific fields
// (PSE bank code, card token, gateway reference). The controller only cares
// that Method is set; everything else is opaque to it.
type PaymentSelection struct {
	Method string            `json:"method"`
	Data   map[string]string `json:"data,omitempty"`
}

// Totals are the derived monetary values for the current cart. They are
// recomputed from the lines on every read, never cached across mutations.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TotalCents    int64 `json:"total_cents"`
	ItemCount     int   `json:"item_count"`
}
