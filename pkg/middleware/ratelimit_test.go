package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loyaltygw/pkg/tenants"
)

func limitedRequest(slug string, limit int) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.RemoteAddr = "198.51.100.7:51234"
	t := tenants.Tenant{Slug: slug, RateLimitPerMinute: limit}
	return req.WithContext(context.WithValue(req.Context(), ctxTenantKey{}, t))
}

func TestRateLimitEnforced(t *testing.T) {
	h := RateLimit(NewMemoryCounter(), zap.NewNop().Sugar())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, limitedRequest("coffeechain", 5))
		require.Equal(t, http.StatusOK, rec.Code, "request %d within limit", i+1)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest("coffeechain", 5))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimitKeyedPerTenantAndIP(t *testing.T) {
	h := RateLimit(NewMemoryCounter(), zap.NewNop().Sugar())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest("coffeechain", 1))
	require.Equal(t, http.StatusOK, rec.Code)

	// Same IP, different tenant: separate window.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest("telcocorp", 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Same tenant, different IP: separate window.
	req := limitedRequest("coffeechain", 1)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Original key is now over its limit of 1.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest("coffeechain", 1))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitSkipsExemptRequests(t *testing.T) {
	h := RateLimit(NewMemoryCounter(), zap.NewNop().Sugar())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	// No tenant in context, e.g. /healthz.
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

type failingCounter struct{}

func (failingCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(failingCounter{}, zap.NewNop().Sugar())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, limitedRequest("coffeechain", 1))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryCounterWindowReset(t *testing.T) {
	c := NewMemoryCounter()
	n, err := c.Incr(context.Background(), "k", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, _ = c.Incr(context.Background(), "k", 10*time.Millisecond)
	assert.Equal(t, int64(2), n)

	time.Sleep(15 * time.Millisecond)
	n, _ = c.Incr(context.Background(), "k", 10*time.Millisecond)
	assert.Equal(t, int64(1), n, "expired window restarts the count")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:4444"
	assert.Equal(t, "192.0.2.4", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
