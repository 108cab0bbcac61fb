package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// GetCart serves GET /api/cart for the calling user.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.carts.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("user_id")
		e.Int64(userID)
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range items {
			encodeCartItem(e, it)
		}
		e.ArrEnd()
		e.FieldStart("total")
		e.Str(pricing.Total(items).StringFixed(2))
		e.ObjEnd()
	})
}

func encodeCartItem(e *jx.Encoder, it cart.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(it.ID)
	e.FieldStart("product_id")
	e.Int64(it.ProductID)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("price")
	e.Str(it.Price.StringFixed(2))
	e.FieldStart("line_total")
	e.Str(it.LineTotal().StringFixed(2))
	e.ObjEnd()
}
