package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/fault"
)

const userIDHeader = "X-User-ID"

// writeJSON encodes the body produced by fn with status 200.
func writeJSON(w http.ResponseWriter, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}

func writeErrorBody(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError maps err to a response. Storage details never reach the client;
// they are logged with the request id instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *fault.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeErrorBody(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, fault.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, "not found")
	default:
		fields := []zap.Field{zap.Error(err)}
		var daErr *fault.DataAccessError
		if errors.As(err, &daErr) {
			fields = append(fields, zap.String("op", daErr.Op))
		}
		zctx.From(r.Context()).Error("Request failed", fields...)
		writeErrorBody(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseID parses a positive integer identifier.
func parseID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fault.Invalid(field, "is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fault.Invalid(field, "must be an integer")
	}
	if id <= 0 {
		return 0, fault.Invalid(field, "must be a positive integer")
	}
	return id, nil
}

// requestUserID resolves the caller from the X-User-ID header set by the
// authenticating proxy, falling back to the user_id query parameter.
// ok is false when neither is present.
func requestUserID(r *http.Request) (id int64, ok bool, err error) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	if strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	id, err = parseID("user_id", raw)
	return id, err == nil, err
}

// requireUserID is requestUserID for routes where the user is mandatory.
func requireUserID(r *http.Request) (int64, error) {
	id, ok, err := requestUserID(r)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fault.Invalid("user_id", "is required")
	}
	return id, nil
}
