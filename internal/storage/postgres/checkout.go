package postgres

import (
	"context"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/fault"
)

const createCheckoutSQL = `INSERT INTO checkouts
	(user_id, order_id, coupon_code, total_price, discount_amount, final_price)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at`

var _ checkout.RecordRepository = (*CheckoutRepository)(nil)

// CheckoutRepository persists checkout records. It is only used inside a
// checkout transaction.
type CheckoutRepository struct {
	q querier
}

// Create inserts r and fills in its generated id and timestamp.
func (c *CheckoutRepository) Create(ctx context.Context, r *checkout.Record) error {
	err := c.q.QueryRow(ctx, createCheckoutSQL,
		r.UserID, r.OrderID, r.CouponCode, r.TotalPrice, r.DiscountAmount, r.FinalPrice,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fault.DataAccess("record checkout", err)
	}
	return nil
}
