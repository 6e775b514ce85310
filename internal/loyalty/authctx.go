package loyalty

import (
	"net/http"
	"strings"

	"loyaltygw/pkg/tenants"
)

// AuthContext carries the normalized identity fields extracted from the
// request headers for one tenant. It is built once per request and passed
// explicitly into the strategy constructor; never stored in ambient state.
type AuthContext struct {
	APIKey          string
	MemberID        string
	UserID          string
	JWTToken        string
	DeviceID        string
	SessionID       string
	MockEligibility string
	Reference       string // assigned once a booking reference is generated
}

// ParseAuthContext reads the tenant-configured auth headers off the request.
// Member, user and customer ids are aliases of each other; MemberID is always
// populated when any of them is present.
func ParseAuthContext(r *http.Request, t tenants.Tenant) AuthContext {
	var auth AuthContext

	if h := t.AuthHeader(); h != "" {
		auth.APIKey = r.Header.Get(h)
	}

	if h := t.IDHeader(); h != "" {
		v := r.Header.Get(h)
		auth.MemberID = v
		auth.UserID = v
	}

	if h, ok := t.Config["user_id_header"].(string); ok && auth.UserID == "" {
		auth.UserID = r.Header.Get(h)
	}

	if h := t.JWTHeader(); h != "" {
		v := r.Header.Get(h)
		auth.JWTToken = strings.TrimPrefix(v, "Bearer ")
	}

	// Test-harness passthrough for the mock eligibility endpoints.
	auth.MockEligibility = r.Header.Get("X-Mock-Eligibility")
	auth.DeviceID = r.Header.Get("X-FA-Device-ID")
	auth.SessionID = r.Header.Get("X-FA-Session-ID")

	if auth.MemberID == "" {
		auth.MemberID = auth.UserID
	}
	return auth
}

// WithReference returns a copy bound to the generated booking reference.
func (a AuthContext) WithReference(ref string) AuthContext {
	a.Reference = ref
	return a
}
