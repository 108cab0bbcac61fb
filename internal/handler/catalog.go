package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
)

// ListProducts serves GET /api/products: an object mapping each category to
// its products, categories in catalog order.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, func(e *jx.Encoder) {
		e.ObjStart()
		for _, c := range product.GroupByCategory(products) {
			e.FieldStart(c.Name)
			e.ArrStart()
			for _, p := range c.Products {
				encodeProduct(e, p)
			}
			e.ArrEnd()
		}
		e.ObjEnd()
	})
}

// ListCoupons serves GET /api/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListActive(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range coupons {
			encodeCoupon(e, c)
		}
		e.ArrEnd()
	})
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("discount_amount")
	e.Str(c.DiscountAmount.StringFixed(2))
	e.FieldStart("expiration_date")
	e.Str(c.ExpirationDate.Format(time.DateOnly))
	e.ObjEnd()
}
