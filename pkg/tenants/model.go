package tenants

import "strings"

// Auth methods a tenant's loyalty API can require.
const (
	AuthAPIKey = "api_key"
	AuthOAuth2 = "oauth2"
	AuthJWT    = "jwt"
)

// Tenant represents a partner organization with its own loyalty currency,
// auth scheme and business rules. Config carries the auth-method-specific
// fields (header names, secrets, thresholds, currency metadata).
type Tenant struct {
	ID                 string // uuid
	Slug               string // unique identifier used in X-Tenant-ID (coffeechain)
	Name               string // display name (CoffeeChain)
	AuthMethod         string // api_key | oauth2 | jwt
	BaseURL            string // base URL of the tenant's loyalty API
	RateLimitPerMinute int
	Config             map[string]any
	ConfigValid        bool // false when the stored config is not a mapping
}

func (t Tenant) configString(key string) string {
	if v, ok := t.Config[key].(string); ok {
		return v
	}
	return ""
}

func (t Tenant) configFloat(key string) (float64, bool) {
	switch v := t.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Currency returns the tenant's loyalty currency name (Stars, Points, Coins).
func (t Tenant) Currency() string { return t.configString("currency") }

// USDRate returns the exchange rate from loyalty currency to USD.
func (t Tenant) USDRate() float64 {
	if r, ok := t.configFloat("currency_to_usd"); ok {
		return r
	}
	return 1.0
}

// ApprovalThreshold returns the configured approval threshold and whether
// one is set for this tenant.
func (t Tenant) ApprovalThreshold() (float64, bool) {
	if v, ok := t.configFloat("approval_threshold"); ok {
		return v, true
	}
	return 0, false
}

// AllowsCabinClass reports whether the given cabin class may be booked by
// this tenant. An empty cabin is never valid; a tenant without a restriction
// accepts every class.
func (t Tenant) AllowsCabinClass(cabin string) bool {
	if cabin == "" {
		return false
	}
	allowed := t.configString("allowed_cabin_class")
	return allowed == "" || strings.EqualFold(cabin, allowed)
}

// IDHeader returns the tenant-specific header naming the member/customer/user id.
func (t Tenant) IDHeader() string { return t.configString("id_header") }

// AuthHeader returns the tenant-specific inbound auth header name, if any.
func (t Tenant) AuthHeader() string { return t.configString("auth_header") }

// APIKey returns the static key expected in AuthHeader for api_key tenants.
func (t Tenant) APIKey() string { return t.configString("api_key") }

func (t Tenant) ClientID() string     { return t.configString("client_id") }
func (t Tenant) ClientSecret() string { return t.configString("client_secret") }

// JWTHeader returns the header carrying the session token for jwt tenants.
func (t Tenant) JWTHeader() string { return t.configString("jwt_header") }
