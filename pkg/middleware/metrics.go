// pkg/middleware/metrics.go
package middleware

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "loyaltygw",
	Name:      "http_requests_total",
	Help:      "Inbound requests partitioned by tenant and status code.",
}, []string{"tenant", "status"})

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Metrics counts requests per tenant and response status.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			tenant := "none"
			if t, ok := TenantFrom(r.Context()); ok {
				tenant = t.Slug
			}
			requestsTotal.WithLabelValues(tenant, strconv.Itoa(rec.status)).Inc()
		})
	}
}
