package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(max int, clock *fakeClock) (*limiter, http.Handler) {
	l := newLimiter(RateLimitConfig{Max: max, Window: time.Minute}, clock.now)
	return l, rateLimit(l, UserOrIPKey)(okHandler())
}

func hit(h http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_OverLimit(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	_, h := newTestLimiter(2, clock)

	w := hit(h, "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, hit(h, "1").Code)

	w = hit(h, "1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimit_KeyedByUser(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	_, h := newTestLimiter(1, clock)

	assert.Equal(t, http.StatusOK, hit(h, "1").Code)
	assert.Equal(t, http.StatusOK, hit(h, "2").Code, "other users have their own budget")
	assert.Equal(t, http.StatusOK, hit(h, "").Code, "anonymous requests are keyed by IP")
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "").Code)
}

func TestRateLimit_SlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	_, h := newTestLimiter(4, clock)

	for range 4 {
		require.Equal(t, http.StatusOK, hit(h, "1").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, hit(h, "1").Code)

	// Halfway into the next window the previous four weigh as two.
	clock.t = clock.t.Add(90 * time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "1").Code)
	assert.Equal(t, http.StatusOK, hit(h, "1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "1").Code)

	// Two idle windows reset the key completely.
	clock.t = clock.t.Add(3 * time.Minute)
	for range 4 {
		assert.Equal(t, http.StatusOK, hit(h, "1").Code)
	}
}

func TestRateLimit_Evict(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l, h := newTestLimiter(1, clock)

	hit(h, "1")
	clock.t = clock.t.Add(90 * time.Second)
	hit(h, "2")

	clock.t = clock.t.Add(time.Minute)
	l.evict()

	assert.NotContains(t, l.byKey, "user:1")
	assert.Contains(t, l.byKey, "user:2")
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(context.Background(), RateLimitConfig{})(okHandler())
	for range 10 {
		w := hit(h, "1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestUserOrIPKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "user header", headers: map[string]string{"X-User-ID": " 42 "}, remote: "1.1.1.1:1", want: "user:42"},
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, remote: "1.1.1.1:1", want: "ip:203.0.113.50"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "1.1.1.1:1", want: "ip:198.51.100.7"},
		{name: "remote addr", remote: "192.168.1.1:4444", want: "ip:192.168.1.1"},
		{name: "remote without port", remote: "unix", want: "ip:unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, UserOrIPKey(req))
		})
	}
}
