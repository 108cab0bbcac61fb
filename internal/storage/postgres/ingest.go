package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/fault"
)

const listCouponCodesSQL = `SELECT code FROM discount_coupons`

var couponCopyColumns = []string{"code", "discount_amount", "expiration_date"}

// CouponWriter bulk-loads coupons.
type CouponWriter struct {
	pool *pgxpool.Pool
}

// NewCouponWriter returns a CouponWriter that uses the given pool.
func NewCouponWriter(pool *pgxpool.Pool) *CouponWriter {
	return &CouponWriter{pool: pool}
}

// ListCouponCodes streams every stored coupon code to fn.
func (w *CouponWriter) ListCouponCodes(ctx context.Context, fn func(code string)) error {
	rows, err := w.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return fault.DataAccess("list coupon codes", err)
	}
	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		fn(code)
		return nil
	})
	if err != nil {
		return fault.DataAccess("list coupon codes", err)
	}
	return nil
}

// CopyCoupons inserts coupons with the COPY protocol. It fails on the first
// duplicate code, so callers pass only codes known to be new.
func (w *CouponWriter) CopyCoupons(ctx context.Context, coupons []coupon.Coupon) (int64, error) {
	n, err := w.pool.CopyFrom(ctx,
		pgx.Identifier{"discount_coupons"},
		couponCopyColumns,
		pgx.CopyFromSlice(len(coupons), func(i int) ([]any, error) {
			c := coupons[i]
			return []any{c.Code, c.DiscountAmount, dateOf(c.ExpirationDate)}, nil
		}),
	)
	if err != nil {
		return 0, fault.DataAccess("copy coupons", err)
	}
	return n, nil
}

// UpsertCoupons writes coupons that may already exist in one batched round trip.
func (w *CouponWriter) UpsertCoupons(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL, c.Code, c.DiscountAmount, dateOf(c.ExpirationDate))
	}
	if err := w.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fault.DataAccess("upsert coupons", err)
	}
	return nil
}
