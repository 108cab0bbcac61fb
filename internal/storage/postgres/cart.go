package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/fault"
)

const (
	listCartSQL = `SELECT id, user_id, product_id, quantity, price
		FROM cart_items WHERE user_id = $1 ORDER BY id`

	listCartForUpdateSQL = listCartSQL + ` FOR UPDATE`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	q querier
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{q: pool}
}

// ListByUser returns the cart lines of userID. A missing cart is empty.
func (r *CartRepository) ListByUser(ctx context.Context, userID int64) ([]cart.Item, error) {
	return r.list(ctx, listCartSQL, userID)
}

// ListByUserForUpdate is ListByUser that also locks the returned rows until
// the surrounding transaction ends.
func (r *CartRepository) ListByUserForUpdate(ctx context.Context, userID int64) ([]cart.Item, error) {
	return r.list(ctx, listCartForUpdateSQL, userID)
}

func (r *CartRepository) list(ctx context.Context, sql string, userID int64) ([]cart.Item, error) {
	rows, err := r.q.Query(ctx, sql, userID)
	if err != nil {
		return nil, fault.DataAccess("list cart", err)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fault.DataAccess("list cart", err)
	}
	return items, nil
}

// DeleteItems removes the cart lines of userID with the given ids and reports
// how many were removed. Lines added after ids were read are kept.
func (r *CartRepository) DeleteItems(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, deleteCartItemsSQL, userID, ids)
	if err != nil {
		return 0, fault.DataAccess("clear cart", err)
	}
	return tag.RowsAffected(), nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Price)
	return it, err
}
