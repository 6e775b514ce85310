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

func coffeeTenant(baseURL string) tenants.Tenant {
	return tenants.Tenant{
		Slug: "coffeechain", Name: "CoffeeChain", AuthMethod: tenants.AuthAPIKey,
		BaseURL: baseURL, ConfigValid: true,
		Config: map[string]any{
			"currency":           "Stars",
			"currency_to_usd":    0.01,
			"approval_threshold": 50000,
			"id_header":          "X-CC-Member-ID",
			"auth_header":        "X-CC-API-Key",
			"api_key":            "cc-secret",
		},
	}
}

func newCoffee(t *testing.T, baseURL string) *CoffeeChain {
	t.Helper()
	auth := AuthContext{APIKey: "cc-secret", MemberID: "M1001"}
	return NewCoffeeChain(coffeeTenant(baseURL), auth, time.Second, zap.NewNop().Sugar())
}

func TestCoffeeChainGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/members/M1001/balance", r.URL.Path)
		assert.Equal(t, "cc-secret", r.Header.Get("X-CC-API-Key"))
		assert.Equal(t, "M1001", r.Header.Get("X-CC-Member-ID"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"balance": 75000})
	}))
	defer srv.Close()

	bal, err := newCoffee(t, srv.URL).GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 75000, bal)
}

func TestCoffeeChainGetBalanceUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newCoffee(t, srv.URL).GetBalance(context.Background())
	assert.Equal(t, http.StatusUnauthorized, problems.StatusOf(err))
}

func TestCoffeeChainDeductPoints(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/members/M1001/deduct", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newCoffee(t, srv.URL).DeductPoints(context.Background(), 12000, "M1001_ABC123", "Flight booking")
	require.NoError(t, err)
	assert.Equal(t, float64(12000), body["amount"])
	assert.Equal(t, "M1001_ABC123", body["reference_id"])
}

func TestCoffeeChainDeductInsufficientBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newCoffee(t, srv.URL).DeductPoints(context.Background(), 999999, "ref", "")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, problems.StatusOf(err))
	var p *problems.Problem
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "Insufficient balance", p.Detail)
}

func TestCoffeeChainRefundSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/members/M1001/refund", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newCoffee(t, srv.URL).RefundPoints(context.Background(), 5000)
	assert.NoError(t, err)
	assert.False(t, problems.IsNotSupported(err))
}

func TestCoffeeChainApprovalThreshold(t *testing.T) {
	remoteCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalled = true
		assert.Equal(t, "/api/v1/approvals/check", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"approval_required": true})
	}))
	defer srv.Close()

	s := newCoffee(t, srv.URL)

	// At or below threshold: decided locally, no remote call.
	required, err := s.RequiresApproval(context.Background(), 50000, "ref")
	require.NoError(t, err)
	assert.False(t, required)
	assert.False(t, remoteCalled)

	// Above threshold: defers to the approvals endpoint.
	required, err = s.RequiresApproval(context.Background(), 50001, "ref")
	require.NoError(t, err)
	assert.True(t, required)
	assert.True(t, remoteCalled)
}

func TestCoffeeChainConversions(t *testing.T) {
	s := newCoffee(t, "http://unused.invalid")
	assert.Equal(t, 120.0, s.ToUSD(12000))
	assert.Equal(t, 9000.0, s.ApplyCashback(9000))
}

func TestCoffeeChainConnectionError(t *testing.T) {
	s := newCoffee(t, "http://127.0.0.1:1")
	_, err := s.GetBalance(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, problems.StatusOf(err))
}
