package orders

import (
	"context"
	"time"
)

type Order struct {
	ID            int64      `json:"id"`
	SessionKey    string     `json:"-"`
	OrderNumber   string     `json:"order_number"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	ShippingCents int64      `json:"shipping_cents"`
	TotalCents    int64      `json:"total_cents"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type ShippingInfo struct {
	Name           string  `json:"name"`
	Phone          string  `json:"phone"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	Department     *string `json:"department,omitempty"`
	PostalCode     *string `json:"postal_code,omitempty"`
	AdditionalInfo *string `json:"additional_info,omitempty"`
}

type OrderItem struct {
	ID             int64             `json:"id"`
	OrderID        int64             `json:"order_id"`
	ProductID      *int64            `json:"product_id,omitempty"`
	VariantID      *int64            `json:"variant_id,omitempty"`
	ProductName    string            `json:"product_name"`
	VariantAttrs   map[string]string `json:"variant_attributes,omitempty"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	LineTotalCents int64             `json:"line_total_cents"`
}

type OrderDetail struct {
	Order    Order        `json:"order"`
	Items    []OrderItem  `json:"items"`
	Shipping ShippingInfo `json:"shipping"`
}

// DraftItem is one cart line at the moment of submission.
type DraftItem struct {
	ProductID      int64
	VariantID      int64
	ProductName    string
	VariantAttrs   map[string]string
	Quantity       int
	UnitPriceCents int64
}

// Draft is the cart snapshot plus shipping and payment handed over by the
// checkout layer. Totals arrive precomputed so the gateway amount matches
// exactly what the buyer saw.
type Draft struct {
	SessionKey    string
	Items         []DraftItem
	Shipping      ShippingInfo
	PaymentMethod string
	Notes         string
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	TotalCents    int64
}

type Store interface {
	// Checkout
	Create(ctx context.Context, draft Draft) (*Order, error)

	// Buyer-facing
	GetByNumber(ctx context.Context, orderNumber string) (*OrderDetail, error)
	GetByID(ctx context.Context, orderID int64) (*Order, error)
	ListBySession(ctx context.Context, sessionKey string, limit, offset int) ([]Order, int, error)

	// Payment webhook
	MarkPaid(ctx context.Context, orderNumber, method, reference string) error
	MarkPaymentFailed(ctx context.Context, orderNumber string) error

	// Admin
	ListAll(ctx context.Context, status string, limit, offset int) ([]Order, int, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) error
}
