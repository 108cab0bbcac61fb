package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/order"
)

var _ checkout.TxManager = (*TxManager)(nil)

// TxManager runs checkout work in a single read-committed transaction.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager that opens transactions on pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
// Errors from fn are returned unchanged.
func (m *TxManager) WithinTx(ctx context.Context, fn func(r checkout.Repos) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		fnErr = fn(txRepos{tx: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fault.DataAccess("checkout transaction", err)
	}
	return nil
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Carts() cart.Repository     { return &CartRepository{q: r.tx} }
func (r txRepos) Orders() order.Repository   { return &OrderRepository{q: r.tx} }
func (r txRepos) Coupons() coupon.Repository { return &CouponRepository{q: r.tx} }
func (r txRepos) Checkouts() checkout.RecordRepository {
	return &CheckoutRepository{q: r.tx}
}
