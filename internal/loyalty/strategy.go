// Package loyalty hides each tenant's remote loyalty-ledger protocol behind
// one interface. Each tenant has an incompatible remote API (static-key REST,
// OAuth2 client-credentials, JWT session REST) and incompatible business
// rules (approval threshold, cabin-class restriction, cashback); one
// implementing type per tenant keeps the booking orchestration
// provider-agnostic. Adding a tenant means adding one variant.
package loyalty

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Strategy is the uniform capability set over a tenant's remote loyalty
// ledger. Instances are bound to one (tenant, AuthContext) pair for the
// lifetime of one request and are never shared across requests.
type Strategy interface {
	// Authenticate validates or refreshes credentials as a side effect.
	// A no-op for the key and OAuth variants, whose credentials are checked
	// implicitly by subsequent calls.
	Authenticate(ctx context.Context) error

	// GetBalance returns the member's current balance from the remote ledger.
	GetBalance(ctx context.Context) (int, error)

	// DeductPoints removes amount from the remote balance. Not idempotent:
	// retried calls may double-deduct.
	DeductPoints(ctx context.Context, amount int, reference, description string) error

	// RefundPoints reverses a prior deduction. Variants without refund
	// support fail with a NotSupported problem, never silently succeed.
	RefundPoints(ctx context.Context, amount int) error

	// RequiresApproval reports whether the booking must start pending.
	RequiresApproval(ctx context.Context, amount int, reference string) (bool, error)

	// ToUSD converts a loyalty amount to USD at the tenant's fixed rate.
	// Pure and deterministic, no I/O.
	ToUSD(amount float64) float64

	// ApplyCashback applies the tenant's cashback rule to amount.
	// Identity for tenants without cashback.
	ApplyCashback(amount float64) float64
}

// providerTimeout is the fixed timeout for all remote-ledger calls. Timeouts
// surface as ServiceUnavailable, never as success.
const providerTimeout = 5 * time.Second

func newProviderClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = providerTimeout
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// detailFrom pulls a human-readable message out of a provider error body,
// falling back to the raw body and then the given default.
func detailFrom(resp *resty.Response, fallback string) string {
	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		switch d := body["detail"].(type) {
		case string:
			if d != "" {
				return d
			}
		case map[string]any:
			if m, ok := d["message"].(string); ok && m != "" {
				return m
			}
		}
	}
	if s := strings.TrimSpace(string(resp.Body())); s != "" {
		return s
	}
	return fallback
}
