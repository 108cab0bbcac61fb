package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a code granting a flat currency discount until its expiration
// date (inclusive).
type Coupon struct {
	ID             int64
	Code           string
	DiscountAmount decimal.Decimal
	ExpirationDate time.Time
}

// ActiveOn reports whether the coupon can still be used at now. Only the
// calendar date of now is compared.
func (c Coupon) ActiveOn(now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := c.ExpirationDate.Date()
	expires := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return !expires.Before(today)
}

// Repository provides read access to the coupon store.
type Repository interface {
	// ListActive returns the coupons not expired at now, soonest expiring first.
	ListActive(ctx context.Context, now time.Time) ([]Coupon, error)
	// FindActiveByCode returns the non-expired coupon with exactly this code,
	// or fault.ErrNotFound.
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*Coupon, error)
}
