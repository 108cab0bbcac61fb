// Package handler implements the storefront HTTP API.
//
// Handlers validate input, call the repositories or the checkout service and
// encode every response as JSON. They are the only place where domain errors
// become status codes.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Checkouter runs the checkout workflow.
type Checkouter interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// Deps are the collaborators of Handler.
type Deps struct {
	Products product.Repository
	Carts    cart.Repository
	Orders   order.Repository
	Coupons  coupon.Repository
	Checkout Checkouter
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler serves the /api routes.
type Handler struct {
	products product.Repository
	carts    cart.Repository
	orders   order.Repository
	coupons  coupon.Repository
	checkout Checkouter
	now      func() time.Time
}

// New returns a Handler backed by deps.
func New(deps Deps) *Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		products: deps.Products,
		carts:    deps.Carts,
		orders:   deps.Orders,
		coupons:  deps.Coupons,
		checkout: deps.Checkout,
		now:      now,
	}
}

// Register adds the API routes to mux. checkoutMW wraps only the checkout
// route, which is where rate limiting applies.
func (h *Handler) Register(mux *http.ServeMux, checkoutMW ...httpmiddleware.Middleware) {
	handle := func(pattern string, fn http.HandlerFunc, mws ...httpmiddleware.Middleware) {
		mux.Handle(pattern, httpmiddleware.Route(httpmiddleware.Wrap(fn, mws...)))
	}

	handle("GET /api/products", h.ListProducts)
	handle("GET /api/cart", h.GetCart)
	handle("GET /api/orders", h.ListOrders)
	handle("GET /api/order/{order_id}", h.GetOrderTracking)
	handle("POST /api/checkout", h.Checkout, checkoutMW...)
	handle("GET /api/coupons", h.ListCoupons)
}
