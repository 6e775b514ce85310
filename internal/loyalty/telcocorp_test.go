package loyalty

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

	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

func telcoTenant(baseURL string) tenants.Tenant {
	return tenants.Tenant{
		Slug: "telcocorp", Name: "TelcoCorp", AuthMethod: tenants.AuthOAuth2,
		BaseURL: baseURL, ConfigValid: true,
		Config: map[string]any{
			"currency":            "Points",
			"currency_to_usd":     0.01,
			"allowed_cabin_class": "economy",
			"id_header":           "X-TC-Customer-ID",
			"client_id":           "tc-client",
			"client_secret":       "tc-secret",
		},
	}
}

// telcoServer mocks the OAuth token endpoint plus one API route.
func telcoServer(t *testing.T, tokenCalls *int, api http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			if tokenCalls != nil {
				*tokenCalls++
			}
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "client_credentials", body["grant_type"])
			assert.Equal(t, "tc-client", body["client_id"])
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc"})
			return
		}
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		api(w, r)
	}))
}

func TestTelcoCorpTokenReused(t *testing.T) {
	calls := 0
	srv := telcoServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"balance": 30000})
	})
	defer srv.Close()

	s := NewTelcoCorp(telcoTenant(srv.URL), AuthContext{MemberID: "C2002"}, time.Second, zap.NewNop().Sugar())
	for i := 0; i < 3; i++ {
		_, err := s.GetBalance(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls, "client-credentials grant should run once per instance")
}

func TestTelcoCorpInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewTelcoCorp(telcoTenant(srv.URL), AuthContext{MemberID: "C2002"}, time.Second, zap.NewNop().Sugar())
	_, err := s.GetBalance(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, problems.StatusOf(err))
	var p *problems.Problem
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "Invalid client credentials", p.Detail)
}

func TestTelcoCorpDeductRequiresReference(t *testing.T) {
	s := NewTelcoCorp(telcoTenant("http://unused.invalid"), AuthContext{MemberID: "C2002"}, time.Second, zap.NewNop().Sugar())
	err := s.DeductPoints(context.Background(), 100, "", "")
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, problems.StatusOf(err))
}

func TestTelcoCorpDeductPoints(t *testing.T) {
	var body map[string]any
	srv := telcoServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/customers/C2002/points/use", r.URL.Path)
		assert.Equal(t, "C2002", r.Header.Get("X-TC-Customer-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	s := NewTelcoCorp(telcoTenant(srv.URL), AuthContext{MemberID: "C2002"}, time.Second, zap.NewNop().Sugar())
	require.NoError(t, s.DeductPoints(context.Background(), 4500, "C2002_XYZ", ""))
	assert.Equal(t, float64(4500), body["points"])
	assert.Equal(t, "C2002_XYZ", body["reference_id"])
}

func TestTelcoCorpRefundNotSupported(t *testing.T) {
	s := NewTelcoCorp(telcoTenant("http://unused.invalid"), AuthContext{MemberID: "C2002"}, time.Second, zap.NewNop().Sugar())
	err := s.RefundPoints(context.Background(), 100)
	require.Error(t, err)
	assert.True(t, problems.IsNotSupported(err))
}

func TestTelcoCorpEligibility(t *testing.T) {
	t.Run("economy allowed", func(t *testing.T) {
		srv := telcoServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v2/customers/C2002/travel/eligibility", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"allowed_classes": []string{"economy"}})
		})
		defer srv.Close()

		s := NewTelcoCorp(telcoTenant(srv.URL), AuthContext{MemberID: "C2002"}, time.Second, zap.NewNop().Sugar())
		required, err := s.RequiresApproval(context.Background(), 10000, "ref")
		require.NoError(t, err)
		assert.False(t, required)
	})

	t.Run("economy not allowed", func(t *testing.T) {
		srv := telcoServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"allowed_classes": []string{}})
		})
		defer srv.Close()

		s := NewTelcoCorp(telcoTenant(srv.URL), AuthContext{MemberID: "C2002"}, time.Second, zap.NewNop().Sugar())
		_, err := s.RequiresApproval(context.Background(), 10000, "ref")
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, problems.StatusOf(err))
	})
}

func TestTelcoCorpMockEligibilityHeaderForwarded(t *testing.T) {
	srv := telcoServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "denied", r.Header.Get("X-Mock-Eligibility"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"allowed_classes": []string{"economy"}})
	})
	defer srv.Close()

	auth := AuthContext{MemberID: "C2002", MockEligibility: "denied"}
	s := NewTelcoCorp(telcoTenant(srv.URL), auth, time.Second, zap.NewNop().Sugar())
	_, err := s.RequiresApproval(context.Background(), 100, "ref")
	require.NoError(t, err)
}

func TestTelcoCorpToUSD(t *testing.T) {
	s := NewTelcoCorp(telcoTenant(""), AuthContext{}, time.Second, zap.NewNop().Sugar())
	assert.Equal(t, 45.0, s.ToUSD(4500))
}
