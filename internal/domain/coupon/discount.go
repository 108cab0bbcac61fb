package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/fault"
)

// DiscountFor returns the flat discount granted by code at now. The empty
// code, unknown codes and expired codes all grant zero. The amount does not
// depend on the cart.
func DiscountFor(ctx context.Context, repo Repository, code string, now time.Time) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}

	c, err := repo.FindActiveByCode(ctx, code, now)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, errors.Wrap(err, "lookup coupon")
	}

	if c.DiscountAmount.IsNegative() {
		return decimal.Zero, nil
	}
	return c.DiscountAmount, nil
}
