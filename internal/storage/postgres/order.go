package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, total_price, status, created_at`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 ORDER BY created_at, id`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listTrackingSQL = `SELECT id, order_id, status, location, timestamp
		FROM order_tracking WHERE order_id = $1 ORDER BY timestamp, id`

	createOrderSQL = `INSERT INTO orders (user_id, total_price, status)
		VALUES ($1, $2, $3) RETURNING id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	q querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{q: pool}
}

// ListByUser returns every order of userID, oldest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.q.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fault.DataAccess("list orders", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fault.DataAccess("list orders", err)
	}
	return orders, nil
}

// GetByID returns a single order or fault.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fault.DataAccess("get order", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.ErrNotFound
		}
		return nil, fault.DataAccess("get order", err)
	}
	return &o, nil
}

// ListTracking returns the tracking events of orderID in chronological order.
// An order without events, or an unknown order, yields an empty slice.
func (r *OrderRepository) ListTracking(ctx context.Context, orderID int64) ([]order.TrackingEvent, error) {
	rows, err := r.q.Query(ctx, listTrackingSQL, orderID)
	if err != nil {
		return nil, fault.DataAccess("list tracking", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.TrackingEvent, error) {
		var e order.TrackingEvent
		err := row.Scan(&e.ID, &e.OrderID, &e.Status, &e.Location, &e.Timestamp)
		return e, err
	})
	if err != nil {
		return nil, fault.DataAccess("list tracking", err)
	}
	return events, nil
}

// Create inserts a Pending order and returns its generated id.
func (r *OrderRepository) Create(ctx context.Context, userID int64, totalPrice decimal.Decimal) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, createOrderSQL, userID, totalPrice, order.StatusPending).Scan(&id); err != nil {
		return 0, fault.DataAccess("insert order", err)
	}
	return id, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.CreatedAt)
	return o, err
}
