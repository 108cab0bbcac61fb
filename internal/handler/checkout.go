package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/fault"
)

const maxCheckoutBody = 64 << 10

type checkoutBody struct {
	userID     int64
	hasUserID  bool
	couponCode string
}

// decodeCheckoutBody reads {"user_id": 1, "coupon_code": "X"}. Both fields
// are optional, and an empty body is allowed.
func decodeCheckoutBody(data []byte) (checkoutBody, error) {
	var b checkoutBody
	if len(bytes.TrimSpace(data)) == 0 {
		return b, nil
	}

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "user_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			id, err := d.Int64()
			if err != nil {
				return fault.Invalid("user_id", "must be an integer")
			}
			b.userID, b.hasUserID = id, true
		case "coupon_code":
			if d.Next() == jx.Null {
				return d.Null()
			}
			code, err := d.Str()
			if err != nil {
				return fault.Invalid("coupon_code", "must be a string")
			}
			b.couponCode = code
		default:
			return d.Skip()
		}
		return nil
	})
	if err == nil && d.Next() != jx.Invalid {
		err = errors.New("trailing data after object")
	}
	if err != nil {
		var vErr *fault.ValidationError
		if errors.As(err, &vErr) {
			return b, vErr
		}
		return b, fault.Invalid("body", "malformed JSON")
	}
	return b, nil
}

// Checkout serves POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCheckoutBody))
	if err != nil {
		writeError(w, r, fault.Invalid("body", "unreadable or too large"))
		return
	}
	body, err := decodeCheckoutBody(data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	userID, ok, err := requestUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case ok && body.hasUserID && body.userID != userID:
		writeError(w, r, fault.Invalid("user_id", "does not match the authenticated user"))
		return
	case !ok && body.hasUserID:
		userID = body.userID
	case !ok:
		writeError(w, r, fault.Invalid("user_id", "is required"))
		return
	}

	res, err := h.checkout.Checkout(r.Context(), checkout.Request{
		UserID:     userID,
		CouponCode: body.couponCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order_id")
		e.Int64(res.OrderID)
		e.FieldStart("message")
		e.Str(fmt.Sprintf("Checkout completed. Order ID: %d", res.OrderID))
		e.FieldStart("total")
		e.Str(res.Total.StringFixed(2))
		e.FieldStart("discount")
		e.Str(res.Discount.StringFixed(2))
		e.FieldStart("final_price")
		e.Str(res.Final.StringFixed(2))
		e.ObjEnd()
	})
}
