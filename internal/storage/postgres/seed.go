package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	upsertProductSQL = `INSERT INTO products (name, category, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (category, name) DO UPDATE SET price = EXCLUDED.price
		RETURNING id`

	upsertCouponSQL = `INSERT INTO discount_coupons (code, discount_amount, expiration_date)
		VALUES ($1, $2, $3::date)
		ON CONFLICT (code) DO UPDATE SET
			discount_amount = EXCLUDED.discount_amount,
			expiration_date = EXCLUDED.expiration_date`

	addCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4) RETURNING id`

	addTrackingEventSQL = `INSERT INTO order_tracking (order_id, status, location, timestamp)
		VALUES ($1, $2, $3, $4) RETURNING id`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

// Seeder writes fixture data. Every write is an upsert or a plain insert, so
// seeding twice duplicates carts and orders but never the catalog or coupons.
type Seeder struct {
	q querier
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{q: pool}
}

// UpsertProduct inserts p or updates the price of the product with the same
// category and name. The stored id is written back to p.
func (s *Seeder) UpsertProduct(ctx context.Context, p *product.Product) error {
	if err := s.q.QueryRow(ctx, upsertProductSQL, p.Name, p.Category, p.Price).Scan(&p.ID); err != nil {
		return fault.DataAccess("upsert product", err)
	}
	return nil
}

// UpsertCoupon inserts c or overwrites the coupon with the same code.
func (s *Seeder) UpsertCoupon(ctx context.Context, c coupon.Coupon) error {
	if _, err := s.q.Exec(ctx, upsertCouponSQL, c.Code, c.DiscountAmount, dateOf(c.ExpirationDate)); err != nil {
		return fault.DataAccess("upsert coupon", err)
	}
	return nil
}

// AddCartItem appends a line to the cart of userID at the given unit price.
func (s *Seeder) AddCartItem(ctx context.Context, userID, productID int64, quantity int, price decimal.Decimal) (int64, error) {
	var id int64
	if err := s.q.QueryRow(ctx, addCartItemSQL, userID, productID, quantity, price).Scan(&id); err != nil {
		return 0, fault.DataAccess("add cart item", err)
	}
	return id, nil
}

// CreateOrder inserts a Pending order for userID.
func (s *Seeder) CreateOrder(ctx context.Context, userID int64, total decimal.Decimal) (int64, error) {
	return (&OrderRepository{q: s.q}).Create(ctx, userID, total)
}

// AddTrackingEvent records a status change of orderID and moves the order to
// that status.
func (s *Seeder) AddTrackingEvent(ctx context.Context, orderID int64, status order.Status, location *string, at time.Time) (int64, error) {
	var id int64
	if err := s.q.QueryRow(ctx, addTrackingEventSQL, orderID, status, location, at).Scan(&id); err != nil {
		return 0, fault.DataAccess("add tracking event", err)
	}
	if _, err := s.q.Exec(ctx, setOrderStatusSQL, orderID, status); err != nil {
		return 0, fault.DataAccess("update order status", err)
	}
	return id, nil
}
