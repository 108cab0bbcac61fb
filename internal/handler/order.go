package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

// ListOrders serves GET /api/orders for the calling user.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, func(e *jx.Encoder) {
		e.ArrStart()
		for _, o := range orders {
			encodeOrder(e, o)
		}
		e.ArrEnd()
	})
}

// GetOrderTracking serves GET /api/order/{order_id}: the order status and its
// tracking events, oldest first. Unknown orders are 404.
func (h *Handler) GetOrderTracking(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseID("order_id", r.PathValue("order_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.orders.ListTracking(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order_id")
		e.Int64(o.ID)
		e.FieldStart("status")
		e.Str(string(o.Status))
		e.FieldStart("total_price")
		e.Str(o.FormattedTotal())
		e.FieldStart("events")
		e.ArrStart()
		for _, ev := range events {
			encodeTrackingEvent(e, ev)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("user_id")
	e.Int64(o.UserID)
	e.FieldStart("total_price")
	e.Str(o.FormattedTotal())
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeTrackingEvent(e *jx.Encoder, ev order.TrackingEvent) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(ev.ID)
	e.FieldStart("status")
	e.Str(ev.Status)
	e.FieldStart("location")
	if ev.Location != nil {
		e.Str(*ev.Location)
	} else {
		e.Null()
	}
	e.FieldStart("timestamp")
	e.Str(ev.Timestamp.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
