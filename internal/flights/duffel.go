// Package flights wraps the external flight-offer provider (Duffel).
package flights

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	jmes "github.com/jmespath/go-jmespath"
	"go.uber.org/zap"

	"loyaltygw/pkg/config"
	"loyaltygw/pkg/problems"
)

// Client calls the Duffel offers API. All calls block with a fixed timeout;
// a timeout is surfaced as a retryable 504, never as success.
type Client struct {
	http *resty.Client
	log  *zap.SugaredLogger
}

func NewClient(cfg config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.DuffelAPIURL).
			SetTimeout(cfg.DuffelTimeout).
			SetHeader("Authorization", "Bearer "+cfg.DuffelAPIKey).
			SetHeader("Duffel-Version", cfg.DuffelAPIVersion).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		log: log,
	}
}

// SearchParams is a validated flight search request.
type SearchParams struct {
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	DepartureDate string         `json:"departure_date"`
	ReturnDate    string         `json:"return_date,omitempty"`
	Passengers    map[string]int `json:"passengers"`
	CabinClass    string         `json:"cabin_class"`
	Currency      string         `json:"currency"`
}

// Search posts an offer request and returns the raw offers list.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]any, error) {
	slices := []map[string]any{{
		"origin":         p.Origin,
		"destination":    p.Destination,
		"departure_date": p.DepartureDate,
	}}
	if p.ReturnDate != "" {
		slices = append(slices, map[string]any{
			"origin":         p.Destination,
			"destination":    p.Origin,
			"departure_date": p.ReturnDate,
		})
	}

	payload := map[string]any{
		"slices":          slices,
		"cabin_class":     p.CabinClass,
		"passengers":      buildPassengers(p.Passengers),
		"currency":        p.Currency,
		"max_connections": 1,
	}

	var out struct {
		Data struct {
			Offers []any `json:"offers"`
		} `json:"data"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"data": payload}).
		SetResult(&out).
		Post("/offer_requests?return_offers=true")
	if err != nil {
		if isTimeout(err) {
			c.log.Errorw("duffel search timed out", "err", err)
			return nil, problems.New("duffel-timeout", "Duffel Timeout", http.StatusGatewayTimeout,
				"Flight search timed out while contacting Duffel.", "/api/v1/flights/search")
		}
		return nil, problems.New("duffel-bad-gateway", "Duffel API Error", http.StatusBadGateway,
			"Duffel API is unreachable.", "/api/v1/flights/search")
	}
	if !resp.IsSuccess() {
		c.log.Errorw("duffel search error", "status", resp.StatusCode(), "body", string(resp.Body()))
		return nil, problems.New("duffel-bad-gateway", "Duffel API Error", http.StatusBadGateway,
			"Duffel API responded with an error.", "/api/v1/flights/search").
			WithExtra(map[string]any{"duffel_status": resp.StatusCode()})
	}
	return out.Data.Offers, nil
}

// GetOffer fetches one offer by id. A missing offer is 410: the offer existed
// once but expired, which the booking flow treats differently from a bad id.
func (c *Client) GetOffer(ctx context.Context, offerID string) (map[string]any, error) {
	url := "/offers/" + offerID
	var out struct {
		Data map[string]any `json:"data"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(url)
	if err != nil {
		return nil, problems.ServiceUnavailable("Error contacting Duffel.", url)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, problems.New("offer-expired", "Offer Expired or Invalid", http.StatusGone,
			"No offer found for ID '"+offerID+"'. It may have expired or been removed.", url)
	}
	if !resp.IsSuccess() {
		return nil, problems.ServiceUnavailable("Duffel API responded with an error.", url)
	}
	return out.Data, nil
}

func buildPassengers(counts map[string]int) []map[string]string {
	types := []struct{ label, typ string }{
		{"adults", "adult"},
		{"children", "child"},
		{"infants", "infant"},
	}
	var passengers []map[string]string
	for _, t := range types {
		for i := 0; i < counts[t.label]; i++ {
			passengers = append(passengers, map[string]string{"type": t.typ})
		}
	}
	return passengers
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// Metadata is the subset of an offer the booking flow needs.
type Metadata struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	CabinClass    string
	Airline       string
	FlightNumber  string
}

// ExtractMetadata pulls itinerary fields out of a raw offer document.
func ExtractMetadata(offer map[string]any) Metadata {
	m := Metadata{Origin: "UNKNOWN", Destination: "UNKNOWN"}
	if v := search("slices[0].segments[0].origin.iata_code", offer); v != "" {
		m.Origin = v
	}
	if v := search("slices[0].segments[-1].destination.iata_code", offer); v != "" {
		m.Destination = v
	}
	if v := search("slices[0].segments[0].departing_at", offer); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			m.DepartureDate = t
		}
	}
	if v := search("slices[1].segments[0].departing_at", offer); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			m.ReturnDate = &t
		}
	}
	m.CabinClass = search("slices[0].segments[0].passengers[0].cabin_class", offer)
	m.Airline = search("owner.name", offer)
	if v := search("slices[0].segments[0].marketing_carrier_flight_number", offer); v != "" {
		m.FlightNumber = search("slices[0].segments[0].marketing_carrier.iata_code", offer) + v
	}
	return m
}

func search(expr string, doc map[string]any) string {
	v, err := jmes.Search(expr, doc)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
