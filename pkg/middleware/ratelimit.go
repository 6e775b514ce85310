// pkg/middleware/ratelimit.go
package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"loyaltygw/pkg/problems"
)

const rateWindow = 60 * time.Second

// defaultRateLimit applies when a tenant has no rate_limit_per_minute set.
const defaultRateLimit = 100

// CounterStore increments a fixed-window counter and returns the count after
// the increment. The first increment of a window starts its expiry clock.
// Increment-with-expiry must be atomic so concurrent requests on one key do
// not lose counts.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// redisCounter keys counters in a shared Redis so the window holds across
// gateway replicas. INCR is atomic; EXPIRE NX arms the window once.
type redisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) CounterStore { return &redisCounter{rdb: rdb} }

func (c *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// memCounter is the single-process fallback used in dev and tests.
type memCounter struct {
	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	start time.Time
	count int64
}

func NewMemoryCounter() CounterStore {
	return &memCounter{windows: map[string]*memWindow{}}
}

func (c *memCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	w, ok := c.windows[key]
	if !ok || now.Sub(w.start) >= window {
		w = &memWindow{start: now}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// RateLimit throttles per (tenant, client IP) after tenant resolution.
// Requests without a tenant in context (exempt paths) are never throttled.
// Counter-store failures fail open so a cache outage does not take down
// every tenant.
func RateLimit(store CounterStore, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, ok := TenantFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			limit := t.RateLimitPerMinute
			if limit <= 0 {
				limit = defaultRateLimit
			}

			key := "ratelimit:" + t.Slug + ":" + clientIP(r)
			count, err := store.Incr(r.Context(), key, rateWindow)
			if err != nil {
				log.Warnw("rate limit store error, failing open", "tenant", t.Slug, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow/time.Second)))
				problems.WriteProblem(w, problems.RateLimit(
					"Rate limit of "+strconv.Itoa(limit)+" requests per minute exceeded for tenant '"+t.Slug+"'.",
					r.URL.Path))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
