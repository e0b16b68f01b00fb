package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mercado/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository struct {
	q   dbx.Querier
	gen *OrderNumberGenerator
}

func NewRepository(q dbx.Querier, gen *OrderNumberGenerator) *Repository {
	if gen == nil {
		panic("orders: OrderNumberGenerator is nil")
	}
	return &Repository{q: q, gen: gen}
}

// Create snapshots a checkout draft into orders + order_items. Prices and
// totals are written exactly as handed over, so what the gateway charges is
// what the buyer confirmed. Assumes it is called inside a transaction when
// combined with stock reservation.
func (r *Repository) Create(ctx context.Context, draft Draft) (*Order, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("create order: empty cart snapshot")
	}

	number := r.gen.Generate(draft.SessionKey)

	var o Order
	var notes *string
	if draft.Notes != "" {
		notes = &draft.Notes
	}
	err := r.q.QueryRow(ctx, `
INSERT INTO orders (
  session_key, order_number, status, payment_status, payment_method,
  subtotal_cents, tax_cents, shipping_cents, total_cents, notes,
  ship_name, ship_phone, ship_address, ship_city, ship_department,
  ship_postal_code, ship_additional_info
)
VALUES ($1,$2,'pending','unpaid',$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
RETURNING id, session_key, order_number, status, payment_status, payment_method,
          paid_at, subtotal_cents, tax_cents, shipping_cents, total_cents, notes, created_at
`,
		draft.SessionKey, number, draft.PaymentMethod,
		draft.SubtotalCents, draft.TaxCents, draft.ShippingCents, draft.TotalCents, notes,
		draft.Shipping.Name, draft.Shipping.Phone, draft.Shipping.Address, draft.Shipping.City,
		draft.Shipping.Department, draft.Shipping.PostalCode, draft.Shipping.AdditionalInfo,
	).Scan(
		&o.ID, &o.SessionKey, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.PaidAt, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents, &o.Notes, &o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range draft.Items {
		attrs, _ := json.Marshal(it.VariantAttrs)
		_, err := r.q.Exec(ctx, `
INSERT INTO order_items (
  order_id, product_id, variant_id, product_name, variant_attributes,
  quantity, unit_price_cents, line_total_cents
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
			o.ID, it.ProductID, it.VariantID, it.ProductName, attrs,
			it.Quantity, it.UnitPriceCents, it.UnitPriceCents*int64(it.Quantity),
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	return &o, nil
}

func (r *Repository) GetByNumber(ctx context.Context, orderNumber string) (*OrderDetail, error) {
	var d OrderDetail
	err := r.q.QueryRow(ctx, `
SELECT id, session_key, order_number, status, payment_status, payment_method, paid_at,
       subtotal_cents, tax_cents, shipping_cents, total_cents, notes, created_at,
       ship_name, ship_phone, ship_address, ship_city, ship_department,
       ship_postal_code, ship_additional_info
FROM orders
WHERE order_number = $1
`, orderNumber).Scan(
		&d.Order.ID, &d.Order.SessionKey, &d.Order.OrderNumber, &d.Order.Status,
		&d.Order.PaymentStatus, &d.Order.PaymentMethod, &d.Order.PaidAt,
		&d.Order.SubtotalCents, &d.Order.TaxCents, &d.Order.ShippingCents, &d.Order.TotalCents,
		&d.Order.Notes, &d.Order.CreatedAt,
		&d.Shipping.Name, &d.Shipping.Phone, &d.Shipping.Address, &d.Shipping.City,
		&d.Shipping.Department, &d.Shipping.PostalCode, &d.Shipping.AdditionalInfo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.q.Query(ctx, `
SELECT id, order_id, product_id, variant_id, product_name, variant_attributes,
       quantity, unit_price_cents, line_total_cents
FROM order_items
WHERE order_id = $1
ORDER BY id ASC
`, d.Order.ID)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		var attrs []byte
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName, &attrs,
			&it.Quantity, &it.UnitPriceCents, &it.LineTotalCents,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		_ = json.Unmarshal(attrs, &it.VariantAttrs)
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order item rows: %w", err)
	}

	return &d, nil
}

func (r *Repository) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	var o Order
	err := r.q.QueryRow(ctx, `
SELECT id, session_key, order_number, status, payment_status, payment_method, paid_at,
       subtotal_cents, tax_cents, shipping_cents, total_cents, notes, created_at
FROM orders
WHERE id = $1
`, orderID).Scan(
		&o.ID, &o.SessionKey, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.PaidAt, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
		&o.Notes, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return &o, nil
}

func (r *Repository) ListBySession(ctx context.Context, sessionKey string, limit, offset int) ([]Order, int, error) {
	return r.list(ctx, "session_key = $1", []any{sessionKey}, limit, offset)
}

func (r *Repository) ListAll(ctx context.Context, status string, limit, offset int) ([]Order, int, error) {
	if status == "" {
		return r.list(ctx, "1=1", nil, limit, offset)
	}
	return r.list(ctx, "status = $1", []any{status}, limit, offset)
}

func (r *Repository) list(ctx context.Context, where string, args []any, limit, offset int) ([]Order, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}

	q := fmt.Sprintf(`
SELECT id, session_key, order_number, status, payment_status, payment_method, paid_at,
       subtotal_cents, tax_cents, shipping_cents, total_cents, notes, created_at,
       COUNT(*) OVER() AS total
FROM orders
WHERE %s
ORDER BY id DESC
LIMIT $%d OFFSET $%d
`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	total := 0
	for rows.Next() {
		var o Order
		var t int
		if err := rows.Scan(
			&o.ID, &o.SessionKey, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
			&o.PaidAt, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
			&o.Notes, &o.CreatedAt, &t,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("order rows: %w", err)
	}
	return out, total, nil
}

// MarkPaid records a confirmed gateway payment. Idempotent: a second webhook
// for the same order leaves it paid.
func (r *Repository) MarkPaid(ctx context.Context, orderNumber, method, reference string) error {
	tag, err := r.q.Exec(ctx, `
UPDATE orders
SET payment_status = 'paid',
    status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
    payment_method = $2,
    payment_reference = $3,
    paid_at = COALESCE(paid_at, now())
WHERE order_number = $1
`, orderNumber, method, reference)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) MarkPaymentFailed(ctx context.Context, orderNumber string) error {
	tag, err := r.q.Exec(ctx, `
UPDATE orders
SET payment_status = 'failed'
WHERE order_number = $1 AND payment_status = 'unpaid'
`, orderNumber)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	tag, err := r.q.Exec(ctx, `
UPDATE orders SET status = $2 WHERE id = $1
`, orderID, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
