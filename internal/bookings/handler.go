package bookings

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loyaltygw/internal/loyalty"
	"loyaltygw/pkg/middleware"
	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

// Handler exposes the booking endpoints.
type Handler struct {
	svc *Service
	log *zap.SugaredLogger
}

func NewHandler(svc *Service, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the booking routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/bookings", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/search", h.search)
		r.Get("/{id}", h.get)
		r.Post("/{id}/cancel", h.cancel)
	})
	r.Get("/api/v1/admin/bookings", h.adminList)
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (tenants.Tenant, bool) {
	t, ok := middleware.TenantFrom(r.Context())
	if !ok {
		problems.Write(w, r, problems.Internal("Tenant missing from request context", r.URL.Path), h.log)
	}
	return t, ok
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problems.Write(w, r, problems.Validation("Request body must be valid JSON", r.URL.Path), h.log)
		return
	}
	auth := loyalty.ParseAuthContext(r, t)
	out, err := h.svc.Create(r.Context(), t, auth, req, r.URL.Path)
	if err != nil {
		problems.Write(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		problems.Write(w, r, problems.Validation("Booking ID must be an integer", r.URL.Path), h.log)
		return
	}
	var req CancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			problems.Write(w, r, problems.Validation("Field refund_requested must be a boolean", r.URL.Path), h.log)
			return
		}
	}
	auth := loyalty.ParseAuthContext(r, t)
	out, err := h.svc.Cancel(r.Context(), t, auth, id, req, r.URL.Path)
	if err != nil {
		problems.Write(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		problems.Write(w, r, problems.Validation("Booking ID must be an integer", r.URL.Path), h.log)
		return
	}
	out, err := h.svc.Get(r.Context(), t, id, r.URL.Path)
	if err != nil {
		problems.Write(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}
	f, err := filterFromQuery(r, t.Slug)
	if err != nil {
		problems.Write(w, r, err, h.log)
		return
	}
	out, perr := h.svc.ListPage(r.Context(), f, r.URL.Path)
	if perr != nil {
		problems.Write(w, r, perr, h.log)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// adminList returns bookings across all tenants. The caller still
// authenticates as a tenant; this is an operator convenience view.
func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.tenant(w, r); !ok {
		return
	}
	f, err := filterFromQuery(r, "")
	if err != nil {
		problems.Write(w, r, err, h.log)
		return
	}
	if t := r.URL.Query().Get("tenant"); t != "" {
		f.Tenant = t
	}
	out, perr := h.svc.ListPage(r.Context(), f, r.URL.Path)
	if perr != nil {
		problems.Write(w, r, perr, h.log)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tenant(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Search(r.Context(), t, r.URL.Query().Get("q"), r.URL.Path)
	if err != nil {
		problems.Write(w, r, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func filterFromQuery(r *http.Request, tenantSlug string) (Filter, error) {
	q := r.URL.Query()
	f := Filter{Tenant: tenantSlug, Status: q.Get("status")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, problems.Validation("limit must be a non-negative integer", r.URL.Path)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, problems.Validation("offset must be a non-negative integer", r.URL.Path)
		}
		f.Offset = n
	}
	if v := q.Get("from_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, problems.Validation("from_date must be YYYY-MM-DD", r.URL.Path)
		}
		f.FromDate = &t
	}
	if v := q.Get("to_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, problems.Validation("to_date must be YYYY-MM-DD", r.URL.Path)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.ToDate = &end
	}
	return f, nil
}
