package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mercado/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found or inactive")
	ErrOutOfStock      = errors.New("insufficient stock")
)

// Store is the data access abstraction for the catalog domain. It is also
// the stock-availability source feeding cart lines at add time; the checkout
// layer never re-checks stock after that.
type Store interface {
	ListProducts(ctx context.Context, limit, offset int) ([]ProductCard, int, error)
	GetProductDetail(ctx context.Context, productID int64) (*ProductDetail, error)
	GetCartVariant(ctx context.Context, variantID int64) (*CartVariant, error)
	ReserveStock(ctx context.Context, variantID int64, qty int) error
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) ListProducts(ctx context.Context, limit, offset int) ([]ProductCard, int, error) {
	rows, err := r.db.Query(ctx, `
SELECT p.id, p.name, p.slug, p.description, p.vendor_id, v.name,
       MIN(pv.price_cents) FILTER (WHERE pv.is_active),
       MAX(pv.price_cents) FILTER (WHERE pv.is_active),
       (
         SELECT url FROM product_images
         WHERE product_id = p.id AND is_primary = true
         ORDER BY created_at ASC
         LIMIT 1
       ),
       COUNT(*) OVER() AS total
FROM products p
LEFT JOIN vendors v ON v.id = p.vendor_id
LEFT JOIN product_variants pv ON pv.product_id = p.id
WHERE p.is_active = true
GROUP BY p.id, v.name
ORDER BY p.id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []ProductCard
	total := 0
	for rows.Next() {
		var c ProductCard
		var t int
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Slug, &c.Description, &c.VendorID, &c.VendorName,
			&c.MinPriceCents, &c.MaxPriceCents, &c.PrimaryImageURL, &t,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product card: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("product rows: %w", err)
	}
	return out, total, nil
}

func (r *Repository) GetProductDetail(ctx context.Context, productID int64) (*ProductDetail, error) {
	var d ProductDetail
	err := r.db.QueryRow(ctx, `
SELECT id, vendor_id, name, slug, description, is_active, created_at, updated_at
FROM products
WHERE id = $1 AND is_active = true
`, productID).Scan(
		&d.Product.ID, &d.Product.VendorID, &d.Product.Name, &d.Product.Slug,
		&d.Product.Description, &d.Product.IsActive, &d.Product.CreatedAt, &d.Product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	if d.Product.VendorID != nil {
		var v Vendor
		err := r.db.QueryRow(ctx, `
SELECT id, name, slug, city, is_active, created_at
FROM vendors WHERE id = $1
`, *d.Product.VendorID).Scan(&v.ID, &v.Name, &v.Slug, &v.City, &v.IsActive, &v.CreatedAt)
		if err == nil {
			d.Vendor = &v
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get vendor: %w", err)
		}
	}

	rows, err := r.db.Query(ctx, `
SELECT id, product_id, sku, price_cents, attributes, stock_quantity, max_per_order,
       is_active, created_at, updated_at
FROM product_variants
WHERE product_id = $1 AND is_active = true
ORDER BY id ASC
`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pv ProductVariant
		var attrs []byte
		if err := rows.Scan(
			&pv.ID, &pv.ProductID, &pv.SKU, &pv.PriceCents, &attrs,
			&pv.StockQuantity, &pv.MaxPerOrder, &pv.IsActive, &pv.CreatedAt, &pv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		_ = json.Unmarshal(attrs, &pv.Attributes)
		d.Variants = append(d.Variants, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("variant rows: %w", err)
	}

	return &d, nil
}

// GetCartVariant loads the add-to-cart view of a variant: display fields,
// current price and the stock picture at this moment.
func (r *Repository) GetCartVariant(ctx context.Context, variantID int64) (*CartVariant, error) {
	var cv CartVariant
	var attrs []byte
	err := r.db.QueryRow(ctx, `
SELECT pv.id, p.id, p.name, pv.sku, pv.price_cents, pv.attributes,
       pv.stock_quantity, pv.max_per_order,
       p.vendor_id, v.name,
       (
         SELECT url FROM product_images
         WHERE product_id = p.id AND is_primary = true
         ORDER BY created_at ASC
         LIMIT 1
       )
FROM product_variants pv
JOIN products p ON p.id = pv.product_id
LEFT JOIN vendors v ON v.id = p.vendor_id
WHERE pv.id = $1 AND pv.is_active = true AND p.is_active = true
`, variantID).Scan(
		&cv.VariantID, &cv.ProductID, &cv.ProductName, &cv.SKU, &cv.PriceCents, &attrs,
		&cv.StockQuantity, &cv.MaxPerOrder, &cv.VendorID, &cv.VendorName, &cv.PrimaryImageURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("get cart variant: %w", err)
	}
	_ = json.Unmarshal(attrs, &cv.Attributes)
	return &cv, nil
}

// ReserveStock decrements a variant's stock, failing when not enough is
// left. Called inside the order-placement transaction, which is where stock
// is re-validated for carts persisted across sessions.
func (r *Repository) ReserveStock(ctx context.Context, variantID int64, qty int) error {
	tag, err := r.db.Exec(ctx, `
UPDATE product_variants
SET stock_quantity = stock_quantity - $2,
    updated_at = now()
WHERE id = $1
  AND is_active = true
  AND stock_quantity >= $2
`, variantID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOutOfStock
	}
	return nil
}
