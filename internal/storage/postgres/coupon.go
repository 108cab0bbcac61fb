package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/fault"
)

const (
	couponColumns = `id, code, discount_amount, expiration_date`

	listActiveCouponsSQL = `SELECT ` + couponColumns + `
		FROM discount_coupons WHERE expiration_date >= $1::date
		ORDER BY expiration_date, code`

	findActiveCouponSQL = `SELECT ` + couponColumns + `
		FROM discount_coupons WHERE code = $1 AND expiration_date >= $2::date`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	q querier
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{q: pool}
}

// ListActive returns coupons expiring on or after the date of now, soonest
// expiry first.
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.q.Query(ctx, listActiveCouponsSQL, dateOf(now))
	if err != nil {
		return nil, fault.DataAccess("list coupons", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fault.DataAccess("list coupons", err)
	}
	return coupons, nil
}

// FindActiveByCode looks up an unexpired coupon by its exact code.
// Returns fault.ErrNotFound when none matches.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string, now time.Time) (*coupon.Coupon, error) {
	rows, err := r.q.Query(ctx, findActiveCouponSQL, code, dateOf(now))
	if err != nil {
		return nil, fault.DataAccess("find coupon", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.ErrNotFound
		}
		return nil, fault.DataAccess("find coupon", err)
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountAmount, &c.ExpirationDate)
	return c, err
}

// dateOf drops the clock part so DATE comparisons use the caller's calendar day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
