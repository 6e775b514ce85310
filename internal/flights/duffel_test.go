package flights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loyaltygw/pkg/config"
	"loyaltygw/pkg/problems"
)

func testClient(baseURL string) *Client {
	return NewClient(config.Config{
		DuffelAPIURL:     baseURL,
		DuffelAPIKey:     "duffel-test-key",
		DuffelAPIVersion: "v1",
		DuffelTimeout:    2 * time.Second,
	}, zap.NewNop().Sugar())
}

func sampleOffer() map[string]any {
	return map[string]any{
		"id": "off_123",
		"owner": map[string]any{
			"name": "Sample Airlines",
		},
		"slices": []any{
			map[string]any{
				"segments": []any{
					map[string]any{
						"origin":                          map[string]any{"iata_code": "CPT"},
						"destination":                     map[string]any{"iata_code": "JNB"},
						"departing_at":                    "2026-09-15T08:30:00Z",
						"marketing_carrier":               map[string]any{"iata_code": "SA"},
						"marketing_carrier_flight_number": "321",
						"passengers": []any{
							map[string]any{"cabin_class": "economy"},
						},
					},
				},
			},
		},
	}
}

func TestSearchBuildsOfferRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/offer_requests", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("return_offers"))
		assert.Equal(t, "Bearer duffel-test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"offers": []any{sampleOffer()}},
		})
	}))
	defer srv.Close()

	offers, err := testClient(srv.URL).Search(context.Background(), SearchParams{
		Origin: "CPT", Destination: "JNB", DepartureDate: "2026-09-15",
		ReturnDate: "2026-09-20", Passengers: map[string]int{"adults": 2, "children": 1},
		CabinClass: "economy", Currency: "ZAR",
	})
	require.NoError(t, err)
	assert.Len(t, offers, 1)

	data := got["data"].(map[string]any)
	slices := data["slices"].([]any)
	require.Len(t, slices, 2, "round trip builds an outbound and a return slice")
	ret := slices[1].(map[string]any)
	assert.Equal(t, "JNB", ret["origin"])
	assert.Equal(t, "CPT", ret["destination"])
	assert.Len(t, data["passengers"].([]any), 3)
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), SearchParams{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, problems.StatusOf(err))
}

func TestGetOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/offers/off_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": sampleOffer()})
	}))
	defer srv.Close()

	offer, err := testClient(srv.URL).GetOffer(context.Background(), "off_123")
	require.NoError(t, err)
	assert.Equal(t, "off_123", offer["id"])
}

func TestGetOfferExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetOffer(context.Background(), "off_gone")
	require.Error(t, err)
	assert.Equal(t, http.StatusGone, problems.StatusOf(err))
}

func TestExtractMetadata(t *testing.T) {
	m := ExtractMetadata(sampleOffer())
	assert.Equal(t, "CPT", m.Origin)
	assert.Equal(t, "JNB", m.Destination)
	assert.Equal(t, "economy", m.CabinClass)
	assert.Equal(t, "Sample Airlines", m.Airline)
	assert.Equal(t, "SA321", m.FlightNumber)
	assert.Equal(t, 2026, m.DepartureDate.Year())
	assert.Nil(t, m.ReturnDate)
}

func TestExtractMetadataDefaults(t *testing.T) {
	m := ExtractMetadata(map[string]any{})
	assert.Equal(t, "UNKNOWN", m.Origin)
	assert.Equal(t, "UNKNOWN", m.Destination)
	assert.Empty(t, m.CabinClass)
}

func TestValidateSearch(t *testing.T) {
	valid := SearchParams{
		Origin: "CPT", Destination: "JNB", DepartureDate: "2026-09-15",
		Passengers: map[string]int{"adults": 1}, CabinClass: "economy", Currency: "ZAR",
	}
	assert.Empty(t, validateSearch(valid))

	bad := valid
	bad.Origin = "CAPE"
	assert.Contains(t, validateSearch(bad), "origin")

	bad = valid
	bad.DepartureDate = "15-09-2026"
	assert.Contains(t, validateSearch(bad), "departure_date")

	bad = valid
	bad.ReturnDate = "2026-09-01"
	assert.Contains(t, validateSearch(bad), "return_date")

	bad = valid
	bad.Passengers = map[string]int{"children": 2}
	assert.Contains(t, validateSearch(bad), "passengers")

	bad = valid
	bad.CabinClass = "luxury"
	assert.Contains(t, validateSearch(bad), "cabin_class")

	bad = valid
	bad.Currency = "RAND"
	assert.Contains(t, validateSearch(bad), "currency")
}
