package catalog

import "time"

type Vendor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      *string   `json:"slug,omitempty"`
	City      *string   `json:"city,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID          int64     `json:"id"`
	VendorID    *int64    `json:"vendor_id,omitempty"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductVariant struct {
	ID            int64             `json:"id"`
	ProductID     int64             `json:"product_id"`
	SKU           *string           `json:"sku,omitempty"`
	PriceCents    int64             `json:"price_cents"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	StockQuantity int               `json:"stock_quantity"`
	MaxPerOrder   *int              `json:"max_per_order,omitempty"`
	IsActive      bool              `json:"is_active"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ProductCard is the lightweight shape for storefront lists.
type ProductCard struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	Description     *string `json:"description,omitempty"`
	VendorID        *int64  `json:"vendor_id,omitempty"`
	VendorName      *string `json:"vendor_name,omitempty"`
	MinPriceCents   *int64  `json:"min_price_cents,omitempty"`
	MaxPriceCents   *int64  `json:"max_price_cents,omitempty"`
	PrimaryImageURL *string `json:"primary_image_url,omitempty"`
}

// ProductDetail is a product with its sellable variants.
type ProductDetail struct {
	Product  Product          `json:"product"`
	Vendor   *Vendor          `json:"vendor,omitempty"`
	Variants []ProductVariant `json:"variants"`
}

// CartVariant is everything add-to-cart needs to build a cart line: price,
// display fields and the stock picture at add time.
type CartVariant struct {
	VariantID       int64             `json:"variant_id"`
	ProductID       int64             `json:"product_id"`
	ProductName     string            `json:"product_name"`
	SKU             *string           `json:"sku,omitempty"`
	PriceCents      int64             `json:"price_cents"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	PrimaryImageURL *string           `json:"primary_image_url,omitempty"`
	VendorID        *int64            `json:"vendor_id,omitempty"`
	VendorName      *string           `json:"vendor_name,omitempty"`
	StockQuantity   int               `json:"stock_quantity"`
	MaxPerOrder     *int              `json:"max_per_order,omitempty"`
}
