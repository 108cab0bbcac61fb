// Package checkout turns a user's cart into a persisted order.
//
// A checkout reads the cart, prices it, applies the coupon discount, inserts
// a Pending order, records the checkout and clears the cart. All of it runs in
// one transaction: either every step is visible afterwards or none is.
package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
)

// Record is the pricing breakdown stored alongside each checked-out order.
type Record struct {
	ID             int64
	UserID         int64
	OrderID        int64
	CouponCode     string
	TotalPrice     decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
	CreatedAt      time.Time
}

// RecordRepository persists checkout records.
type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
}

// Repos exposes the repositories bound to a single transaction.
type Repos interface {
	Carts() cart.Repository
	Orders() order.Repository
	Coupons() coupon.Repository
	Checkouts() RecordRepository
}

// TxManager runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// OrderPlaced is published after a checkout commits.
type OrderPlaced struct {
	OrderID    int64
	UserID     int64
	CouponCode string
	ItemCount  int
	Total      decimal.Decimal
	Discount   decimal.Decimal
	Final      decimal.Decimal
	PlacedAt   time.Time
}

// Publisher delivers OrderPlaced events to downstream consumers.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, e OrderPlaced) error
}

// Request holds the input of a checkout.
type Request struct {
	UserID     int64
	CouponCode string
}

// Result holds the outcome of a committed checkout.
type Result struct {
	OrderID   int64
	ItemCount int
	Total     decimal.Decimal
	Discount  decimal.Decimal
	Final     decimal.Decimal
}
