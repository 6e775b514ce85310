package loyalty

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

func TestResolveKnownTenants(t *testing.T) {
	log := zap.NewNop().Sugar()

	s, err := Resolve(coffeeTenant(""), AuthContext{}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &CoffeeChain{}, s)

	s, err = Resolve(telcoTenant(""), AuthContext{}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &TelcoCorp{}, s)

	s, err = Resolve(fintechTenant(""), AuthContext{}, time.Second, log)
	require.NoError(t, err)
	assert.IsType(t, &FintechApp{}, s)
}

func TestResolveCaseInsensitive(t *testing.T) {
	tn := coffeeTenant("")
	tn.Slug = "CoffeeChain"
	s, err := Resolve(tn, AuthContext{}, time.Second, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.IsType(t, &CoffeeChain{}, s)
}

func TestResolveUnknownTenant(t *testing.T) {
	tn := tenants.Tenant{Slug: "ghostcorp"}
	_, err := Resolve(tn, AuthContext{}, time.Second, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.True(t, problems.IsNotSupported(err))
}

func TestParseAuthContext(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/bookings", nil)
	r.Header.Set("X-CC-API-Key", "cc-secret")
	r.Header.Set("X-CC-Member-ID", "M1001")
	r.Header.Set("X-Mock-Eligibility", "approved")

	auth := ParseAuthContext(r, coffeeTenant(""))
	assert.Equal(t, "cc-secret", auth.APIKey)
	assert.Equal(t, "M1001", auth.MemberID)
	assert.Equal(t, "approved", auth.MockEligibility)
}

func TestParseAuthContextJWT(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/bookings", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	r.Header.Set("X-FA-User-ID", "U3003")
	r.Header.Set("X-FA-Device-ID", "device-9")
	r.Header.Set("X-FA-Session-ID", "sess-1")

	auth := ParseAuthContext(r, fintechTenant(""))
	assert.Equal(t, "abc.def.ghi", auth.JWTToken)
	assert.Equal(t, "U3003", auth.UserID)
	assert.Equal(t, "U3003", auth.MemberID, "member id aliases the user id")
	assert.Equal(t, "device-9", auth.DeviceID)
	assert.Equal(t, "sess-1", auth.SessionID)
}

func TestAuthContextWithReference(t *testing.T) {
	a := AuthContext{MemberID: "M1"}
	b := a.WithReference("M1_REF")
	assert.Equal(t, "M1_REF", b.Reference)
	assert.Empty(t, a.Reference, "original value is unchanged")
}
