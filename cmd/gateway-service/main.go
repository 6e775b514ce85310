// cmd/gateway-service/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loyaltygw/internal/bookings"
	"loyaltygw/internal/flights"
	"loyaltygw/pkg/config"
	"loyaltygw/pkg/db"
	"loyaltygw/pkg/logger"
	"loyaltygw/pkg/middleware"
	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	seed, err := tenants.LoadSeed(cfg)
	if err != nil {
		log.Fatalw("tenant seed", "err", err)
	}

	var prov tenants.Provider
	if pool != nil {
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("tenant schema", "err", err)
		}
		if err := tenants.Seed(context.Background(), pool, seed); err != nil {
			log.Warnw("tenant seed", "err", err)
		}
		prov = tenants.NewPostgresProvider(pool, log)
	} else {
		prov = tenants.NewMemoryProvider(seed, log)
	}

	var store bookings.Store
	if pool != nil {
		if err := bookings.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("bookings schema", "err", err)
		}
		store = bookings.NewPostgresStore(pool)
	} else {
		store = bookings.NewMemoryStore()
	}

	var counters middleware.CounterStore
	if rdb != nil {
		counters = middleware.NewRedisCounter(rdb)
	} else {
		counters = middleware.NewMemoryCounter()
	}

	duffel := flights.NewClient(cfg, log)
	svc := bookings.NewService(store, duffel, cfg, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.DebugWriteHeader(log))
	// Public services: allow cross-origin for development/tooling.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" { // echo origin to allow credentials if needed later
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(middleware.Tracing())
	r.Use(middleware.WithTenant(prov, log))
	// Metrics and rate limiting sit inside WithTenant so they see the
	// resolved tenant in the request context.
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(counters, log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	r.Get("/api/v1/tenants", listTenants(prov, log))

	flights.NewHandler(duffel, log).Register(r)
	bookings.NewHandler(svc, log).Register(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}

// listTenants is an internal-only directory endpoint gated by the
// X-Internal-Access header rather than tenant auth.
func listTenants(prov tenants.Provider, log logger.Sugared) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(middleware.InternalAccessHeader) != "true" {
			problems.Write(w, r, problems.Forbidden("Internal access required", r.URL.Path), log)
			return
		}
		all, err := prov.ListTenants(r.Context())
		if err != nil {
			problems.Write(w, r, problems.Internal("Could not list tenants", r.URL.Path), log)
			return
		}
		out := make([]map[string]any, 0, len(all))
		for _, t := range all {
			out = append(out, map[string]any{
				"id":          t.ID,
				"slug":        t.Slug,
				"name":        t.Name,
				"auth_method": t.AuthMethod,
				"currency":    t.Currency(),
				"rate_limit":  t.RateLimitPerMinute,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"tenants": out}})
	}
}
