// pkg/middleware/recover.go
package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"loyaltygw/pkg/problems"
)

// Recover converts panics into a generic internal-error problem. Stack traces
// are logged, never sent to the client.
func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("panic", "err", rec, "stack", string(debug.Stack()))
					problems.WriteProblem(w, problems.Internal("An unexpected error occurred.", r.URL.Path))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
