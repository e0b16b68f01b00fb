package storage

import (
	"context"

	"mercado/internal/domain/catalog"
	"mercado/internal/domain/orders"
	"mercado/internal/domain/pushtokens"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool       *pgxpool.Pool
	orderNums  *orders.OrderNumberGenerator
	Catalog    catalog.Store
	Orders     orders.Store
	PushTokens pushtokens.Store
}

func NewContainer(db *pgxpool.Pool, orderNums *orders.OrderNumberGenerator) *Container {
	return &Container{
		pool:       db,
		orderNums:  orderNums,
		Catalog:    catalog.NewRepository(db),
		Orders:     orders.NewRepository(db, orderNums),
		PushTokens: pushtokens.NewRepository(db),
	}
}

// CheckoutTx is a tx-scoped set of repos for the order-placement unit of
// work: reserve stock and snapshot the order atomically.
type CheckoutTx struct {
	Catalog catalog.Store
	Orders  orders.Store
}

// WithCheckoutTx runs a checkout unit-of-work atomically. Without a pool
// (container assembled directly over fakes) it runs the work against the
// container's own repos, non-transactionally.
func (c *Container) WithCheckoutTx(ctx context.Context, fn func(s *CheckoutTx) error) error {
	if c.pool == nil {
		return fn(&CheckoutTx{Catalog: c.Catalog, Orders: c.Orders})
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	s := &CheckoutTx{
		Catalog: catalog.NewRepository(tx),
		Orders:  orders.NewRepository(tx, c.orderNums),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
