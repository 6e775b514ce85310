package loyalty

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

// TelcoCorp integrates the OAuth2 tenant. A bearer token is acquired via the
// client-credentials grant before the first API call and reused for the rest
// of the request; there is no mid-request refresh. Only economy-class
// bookings are eligible.
type TelcoCorp struct {
	tenant tenants.Tenant
	auth   AuthContext
	http   *resty.Client
	log    *zap.SugaredLogger

	accessToken string
}

func NewTelcoCorp(t tenants.Tenant, auth AuthContext, timeout time.Duration, log *zap.SugaredLogger) *TelcoCorp {
	return &TelcoCorp{
		tenant: t,
		auth:   auth,
		http:   newProviderClient(t.BaseURL, timeout),
		log:    log,
	}
}

// token returns the held access token, acquiring one on first use.
func (s *TelcoCorp) token(ctx context.Context) (string, error) {
	if s.accessToken != "" {
		return s.accessToken, nil
	}
	url := "/oauth/token"
	var out struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"grant_type":    "client_credentials",
			"client_id":     s.tenant.ClientID(),
			"client_secret": s.tenant.ClientSecret(),
		}).
		SetResult(&out).
		Post(url)
	if err != nil {
		return "", problems.ServiceUnavailable("Connection error while getting OAuth token", url)
	}
	if resp.StatusCode() == 401 {
		return "", problems.Unauthorized("Invalid client credentials", url)
	}
	if !resp.IsSuccess() {
		return "", problems.ServiceUnavailable(detailFrom(resp, "OAuth token fetch failed"), url)
	}
	s.accessToken = out.AccessToken
	return s.accessToken, nil
}

func (s *TelcoCorp) headers(ctx context.Context) (map[string]string, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	h := map[string]string{
		"Authorization":     "Bearer " + tok,
		s.tenant.IDHeader(): s.auth.MemberID,
	}
	if s.auth.MockEligibility != "" {
		h["X-Mock-Eligibility"] = s.auth.MockEligibility
	}
	return h, nil
}

// Authenticate is a no-op: the token is acquired lazily by the first call.
func (s *TelcoCorp) Authenticate(ctx context.Context) error { return nil }

func (s *TelcoCorp) GetBalance(ctx context.Context) (int, error) {
	url := "/api/v2/customers/" + s.auth.MemberID + "/points"
	h, err := s.headers(ctx)
	if err != nil {
		return 0, err
	}
	var out struct {
		Balance int `json:"balance"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(h).
		SetResult(&out).
		Get(url)
	if err != nil {
		return 0, problems.ServiceUnavailable("Network error fetching TelcoCorp balance", url)
	}
	if resp.StatusCode() == 401 {
		return 0, problems.Unauthorized("Invalid or expired token", url)
	}
	if !resp.IsSuccess() {
		return 0, problems.ServiceUnavailable(detailFrom(resp, "Unable to retrieve TelcoCorp balance"), url)
	}
	return out.Balance, nil
}

func (s *TelcoCorp) DeductPoints(ctx context.Context, amount int, reference, description string) error {
	url := "/api/v2/customers/" + s.auth.MemberID + "/points/use"
	if reference == "" {
		return problems.ServiceUnavailable("Missing booking reference for deduction", url)
	}
	if description == "" {
		description = "Flight booking via loyalty gateway"
	}
	h, err := s.headers(ctx)
	if err != nil {
		return err
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(h).
		SetBody(map[string]any{
			"points":       amount,
			"reference_id": reference,
			"description":  description,
		}).
		Post(url)
	if err != nil {
		return problems.ServiceUnavailable("Connection error during point deduction", url)
	}
	switch {
	case resp.StatusCode() == 403:
		return problems.Forbidden("Insufficient balance", url)
	case resp.StatusCode() == 401:
		return problems.Unauthorized("Invalid or expired token", url)
	case !resp.IsSuccess():
		s.log.Debugw("telcocorp deduction failed", "status", resp.StatusCode(), "body", string(resp.Body()))
		return problems.ServiceUnavailable(detailFrom(resp, "Point deduction failed"), url)
	}
	return nil
}

// RefundPoints is intentionally absent for TelcoCorp.
func (s *TelcoCorp) RefundPoints(ctx context.Context, amount int) error {
	return problems.NotSupported("Refunds are not supported for TelcoCorp.", "")
}

// RequiresApproval never returns true for TelcoCorp; the call doubles as the
// cabin-eligibility gate, rejecting with Forbidden when the remote does not
// allow economy class.
func (s *TelcoCorp) RequiresApproval(ctx context.Context, amount int, reference string) (bool, error) {
	url := "/api/v2/customers/" + s.auth.MemberID + "/travel/eligibility"
	h, err := s.headers(ctx)
	if err != nil {
		return false, err
	}
	var out struct {
		AllowedClasses []string `json:"allowed_classes"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(h).
		SetResult(&out).
		Get(url)
	if err != nil {
		return false, problems.ServiceUnavailable("Connection error during eligibility check", url)
	}
	if resp.StatusCode() == 401 {
		return false, problems.Unauthorized("Invalid or expired token", url)
	}
	if !resp.IsSuccess() {
		return false, problems.ServiceUnavailable(detailFrom(resp, "Eligibility check failed"), url)
	}
	for _, c := range out.AllowedClasses {
		if c == "economy" {
			return false, nil
		}
	}
	return false, problems.Forbidden("TelcoCorp allows only economy class bookings", url)
}

// ToUSD: 100 points = $1.
func (s *TelcoCorp) ToUSD(amount float64) float64 { return amount / 100 }

func (s *TelcoCorp) ApplyCashback(amount float64) float64 { return amount }
