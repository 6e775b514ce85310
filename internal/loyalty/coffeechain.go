package loyalty

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

// defaultApprovalThreshold applies when a tenant config omits one.
const defaultApprovalThreshold = 50000

// CoffeeChain integrates the API-key tenant. Every outbound call carries the
// tenant-configured auth header (static key) and id header (member id).
type CoffeeChain struct {
	tenant tenants.Tenant
	auth   AuthContext
	http   *resty.Client
	log    *zap.SugaredLogger
}

func NewCoffeeChain(t tenants.Tenant, auth AuthContext, timeout time.Duration, log *zap.SugaredLogger) *CoffeeChain {
	return &CoffeeChain{
		tenant: t,
		auth:   auth,
		http:   newProviderClient(t.BaseURL, timeout),
		log:    log,
	}
}

func (s *CoffeeChain) headers() map[string]string {
	return map[string]string{
		s.tenant.AuthHeader(): s.auth.APIKey,
		s.tenant.IDHeader():   s.auth.MemberID,
	}
}

// Authenticate is a no-op: the static key is validated implicitly by every call.
func (s *CoffeeChain) Authenticate(ctx context.Context) error { return nil }

func (s *CoffeeChain) GetBalance(ctx context.Context) (int, error) {
	url := "/api/v1/members/" + s.auth.MemberID + "/balance"
	var out struct {
		Balance int `json:"balance"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(s.headers()).
		SetResult(&out).
		Get(url)
	if err != nil {
		return 0, problems.ServiceUnavailable("Connection error while fetching CoffeeChain balance", url)
	}
	if resp.StatusCode() == 401 {
		return 0, problems.Unauthorized("Invalid API key or member ID", url)
	}
	if !resp.IsSuccess() {
		return 0, problems.ServiceUnavailable(detailFrom(resp, "Unable to fetch balance"), url)
	}
	return out.Balance, nil
}

func (s *CoffeeChain) DeductPoints(ctx context.Context, amount int, reference, description string) error {
	url := "/api/v1/members/" + s.auth.MemberID + "/deduct"
	if reference == "" {
		reference = "undefined-ref"
	}
	if description == "" {
		description = "Flight booking for member " + s.auth.MemberID
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(s.headers()).
		SetBody(map[string]any{
			"reference_id": reference,
			"description":  description,
			"amount":       amount,
		}).
		Post(url)
	if err != nil {
		return problems.ServiceUnavailable("Connection error during point deduction", url)
	}
	switch {
	case resp.StatusCode() == 403:
		return problems.Forbidden("Insufficient balance", url)
	case resp.StatusCode() == 401:
		return problems.Unauthorized("Invalid API key or member ID", url)
	case !resp.IsSuccess():
		return problems.ServiceUnavailable(detailFrom(resp, "Failed to deduct points"), url)
	}
	return nil
}

func (s *CoffeeChain) RefundPoints(ctx context.Context, amount int) error {
	url := "/api/v1/members/" + s.auth.MemberID + "/refund"
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(s.headers()).
		SetBody(map[string]any{"amount": amount}).
		Post(url)
	if err != nil {
		return problems.ServiceUnavailable("Network error during CoffeeChain refund", url)
	}
	if resp.StatusCode() == 401 {
		return problems.Unauthorized("Invalid API key or member ID", url)
	}
	if !resp.IsSuccess() {
		return problems.ServiceUnavailable("Refund failed for CoffeeChain", url)
	}
	return nil
}

// RequiresApproval compares amount against the configured threshold locally
// and only consults the remote approvals endpoint once exceeded.
func (s *CoffeeChain) RequiresApproval(ctx context.Context, amount int, reference string) (bool, error) {
	threshold := float64(defaultApprovalThreshold)
	if v, ok := s.tenant.ApprovalThreshold(); ok {
		threshold = v
	}
	if float64(amount) <= threshold {
		return false, nil
	}

	url := "/api/v1/approvals/check"
	if reference == "" {
		reference = "undefined-ref"
	}
	var out struct {
		ApprovalRequired bool `json:"approval_required"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(s.headers()).
		SetBody(map[string]any{
			"member_id":         s.auth.MemberID,
			"amount":            amount,
			"booking_reference": reference,
		}).
		SetResult(&out).
		Post(url)
	if err != nil {
		return false, problems.ServiceUnavailable("Connection error during approval check", url)
	}
	if !resp.IsSuccess() {
		return false, problems.ServiceUnavailable(detailFrom(resp, "Approval check failed"), url)
	}
	return out.ApprovalRequired, nil
}

// ToUSD: 1 star = $0.01.
func (s *CoffeeChain) ToUSD(amount float64) float64 { return amount * 0.01 }

func (s *CoffeeChain) ApplyCashback(amount float64) float64 { return amount }
