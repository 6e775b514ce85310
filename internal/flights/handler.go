package flights

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loyaltygw/pkg/middleware"
	"loyaltygw/pkg/problems"
)

// Handler exposes tenant-aware flight search.
type Handler struct {
	client *Client
	log    *zap.SugaredLogger
}

func NewHandler(client *Client, log *zap.SugaredLogger) *Handler {
	return &Handler{client: client, log: log}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/flights/search", h.search)
}

var validCabinClasses = map[string]bool{
	"economy": true, "premium_economy": true, "business": true, "first": true,
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.TenantFrom(r.Context()); !ok {
		problems.Write(w, r, problems.Internal(
			"Missing tenant context on request. Ensure the tenant middleware is active.", r.URL.Path), h.log)
		return
	}

	var p SearchParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		problems.Write(w, r, problems.Validation("Invalid flight search payload.", r.URL.Path), h.log)
		return
	}
	if errs := validateSearch(p); len(errs) > 0 {
		problems.Write(w, r, problems.Validation("Invalid flight search payload.", r.URL.Path).
			WithExtra(map[string]any{"errors": errs}), h.log)
		return
	}

	offers, err := h.client.Search(r.Context(), p)
	if err != nil {
		problems.Write(w, r, err, h.log)
		return
	}
	if offers == nil {
		offers = []any{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"offers": offers})
}

func validateSearch(p SearchParams) map[string]string {
	errs := map[string]string{}
	if len(p.Origin) != 3 {
		errs["origin"] = "must be a 3-letter IATA code"
	}
	if len(p.Destination) != 3 {
		errs["destination"] = "must be a 3-letter IATA code"
	}
	dep, err := time.Parse("2006-01-02", p.DepartureDate)
	if err != nil {
		errs["departure_date"] = "must be a YYYY-MM-DD date"
	}
	if p.ReturnDate != "" {
		ret, rerr := time.Parse("2006-01-02", p.ReturnDate)
		if rerr != nil {
			errs["return_date"] = "must be a YYYY-MM-DD date"
		} else if err == nil && ret.Before(dep) {
			errs["return_date"] = "cannot be before departure date"
		}
	}
	if p.Passengers["adults"] < 1 {
		errs["passengers"] = "at least one adult is required"
	}
	if !validCabinClasses[p.CabinClass] {
		errs["cabin_class"] = "must be one of economy, premium_economy, business, first"
	}
	if len(p.Currency) != 3 {
		errs["currency"] = "must be a 3-letter ISO code"
	}
	return errs
}
