// pkg/problems/problems.go
package problems

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/errors)
// 2. BASE_PUBLIC_URL + "/errors" (if set)
// 3. https://api.loyalty-gateway.dev/errors (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("BASE_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/errors"
	}
	return "https://api.loyalty-gateway.dev/errors"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

// Problem is an RFC 7807 error value. Every failure in the gateway is
// represented as one of these; handlers never build ad hoc error bodies.
type Problem struct {
	TypeSlug string
	Title    string
	Status   int
	Detail   string
	Instance string
	Extra    map[string]any
}

func (p *Problem) Error() string { return p.Title + ": " + p.Detail }

// WithInstance returns a copy bound to the given request path.
func (p *Problem) WithInstance(instance string) *Problem {
	cp := *p
	cp.Instance = instance
	return &cp
}

// WithExtra returns a copy carrying additional envelope fields.
func (p *Problem) WithExtra(extra map[string]any) *Problem {
	cp := *p
	cp.Extra = extra
	return &cp
}

// envelope is the wire shape: {"error": {...}} with a fresh trace id.
func (p *Problem) envelope() map[string]any {
	body := map[string]any{
		"type":     Type(p.TypeSlug),
		"title":    p.Title,
		"status":   p.Status,
		"detail":   p.Detail,
		"instance": p.Instance,
		"trace_id": uuid.NewString(),
	}
	for k, v := range p.Extra {
		body[k] = v
	}
	return map[string]any{"error": body}
}

// New builds a problem with a caller-chosen type slug, for error kinds owned
// by a single package (e.g. upstream-provider failures).
func New(slug, title string, status int, detail, instance string) *Problem {
	return newProblem(slug, title, status, detail, instance)
}

func newProblem(slug, title string, status int, detail, instance string) *Problem {
	return &Problem{TypeSlug: slug, Title: title, Status: status, Detail: detail, Instance: instance}
}

func Validation(detail, instance string) *Problem {
	return newProblem("validation-error", "Validation Error", http.StatusBadRequest, detail, instance)
}

func Unauthorized(detail, instance string) *Problem {
	return newProblem("unauthorized", "Unauthorized", http.StatusUnauthorized, detail, instance)
}

func Forbidden(detail, instance string) *Problem {
	return newProblem("forbidden", "Forbidden", http.StatusForbidden, detail, instance)
}

func NotFound(detail, instance string) *Problem {
	return newProblem("not-found", "Not Found", http.StatusNotFound, detail, instance)
}

func RateLimit(detail, instance string) *Problem {
	return newProblem("rate-limit", "Rate Limit Exceeded", http.StatusTooManyRequests, detail, instance)
}

func Internal(detail, instance string) *Problem {
	return newProblem("internal-error", "Internal Server Error", http.StatusInternalServerError, detail, instance)
}

func ServiceUnavailable(detail, instance string) *Problem {
	return newProblem("service-unavailable", "Service Unavailable", http.StatusServiceUnavailable, detail, instance)
}

func MissingTenantHeader(instance string) *Problem {
	return newProblem("missing-tenant-header", "Missing Tenant ID", http.StatusBadRequest,
		"Missing required X-Tenant-ID header.", instance)
}

func InvalidTenant(slug, instance string) *Problem {
	return newProblem("invalid-tenant", "Invalid Tenant", http.StatusNotFound,
		"No tenant found for identifier '"+slug+"'.", instance)
}

func InvalidTenantConfig(slug, instance string) *Problem {
	return newProblem("invalid-tenant-config", "Invalid Tenant Configuration", http.StatusInternalServerError,
		"Tenant '"+slug+"' has malformed config. Expected a key-value mapping.", instance)
}

// NotSupported marks a capability that is intentionally absent for a tenant
// (e.g. refunds), as opposed to a transient failure. Callers decide whether
// to surface or swallow it via IsNotSupported.
func NotSupported(detail, instance string) *Problem {
	return newProblem("not-supported", "Not Supported", http.StatusServiceUnavailable, detail, instance)
}

// IsNotSupported reports whether err is a NotSupported problem.
func IsNotSupported(err error) bool {
	var p *Problem
	return errors.As(err, &p) && p.TypeSlug == "not-supported"
}

// StatusOf returns the HTTP status a problem error would render with,
// or 503 for anything unclassified.
func StatusOf(err error) int {
	var p *Problem
	if errors.As(err, &p) {
		return p.Status
	}
	return http.StatusServiceUnavailable
}

// Write renders err as an RFC 7807 envelope. Unclassified errors degrade to a
// generic 503 shape; the full detail is logged server-side, never sent to the
// client.
func Write(w http.ResponseWriter, r *http.Request, err error, log *zap.SugaredLogger) {
	var p *Problem
	if !errors.As(err, &p) {
		if log != nil {
			log.Errorw("unclassified error", "err", err, "path", r.URL.Path)
		}
		p = ServiceUnavailable("An unexpected error occurred.", r.URL.Path)
	}
	if p.Instance == "" {
		p = p.WithInstance(r.URL.Path)
	}
	WriteProblem(w, p)
}

// WriteProblem renders a problem directly, for call sites without an error chain.
func WriteProblem(w http.ResponseWriter, p *Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p.envelope())
}
