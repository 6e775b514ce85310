package loyalty

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

// FintechApp integrates the JWT tenant. The session token is re-validated
// against the remote session validator before every balance or deduct call;
// a rotated token returned by the validator replaces the held one for the
// rest of the request. Refunds are unsupported and approval is never
// required; a 2% cashback applies to every booking.
type FintechApp struct {
	tenant tenants.Tenant
	auth   AuthContext
	http   *resty.Client
	log    *zap.SugaredLogger

	token string
}

func NewFintechApp(t tenants.Tenant, auth AuthContext, timeout time.Duration, log *zap.SugaredLogger) *FintechApp {
	s := &FintechApp{
		tenant: t,
		auth:   auth,
		http:   newProviderClient(t.BaseURL, timeout),
		log:    log,
		token:  auth.JWTToken,
	}
	// The id header is authoritative, but a token with a sub claim can stand
	// in for it when the caller omitted the header.
	if s.auth.UserID == "" && s.token != "" {
		if tok, err := jwt.ParseInsecure([]byte(s.token)); err == nil {
			s.auth.UserID = tok.Subject()
			if s.auth.MemberID == "" {
				s.auth.MemberID = tok.Subject()
			}
		}
	}
	return s
}

func (s *FintechApp) headers() map[string]string {
	h := map[string]string{
		"Authorization":     "Bearer " + s.token,
		s.tenant.IDHeader(): s.auth.UserID,
	}
	if s.auth.DeviceID != "" {
		h["X-FA-Device-ID"] = s.auth.DeviceID
	}
	return h
}

// validateSession checks the token with the remote session validator and
// swaps in a rotated token when one is returned. An expired token is
// rejected locally without a remote round trip.
func (s *FintechApp) validateSession(ctx context.Context) error {
	url := "/api/v1/sessions/validate"

	if tok, err := jwt.ParseInsecure([]byte(s.token)); err == nil {
		if exp := tok.Expiration(); !exp.IsZero() && time.Now().After(exp) {
			return problems.Unauthorized("Session token has expired.", url)
		}
	}

	var out struct {
		JWTToken string `json:"jwt_token"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.token).
		SetBody(map[string]any{
			"user_id":    s.auth.UserID,
			"session_id": s.auth.SessionID,
			"device_id":  s.auth.DeviceID,
		}).
		SetResult(&out).
		Post(url)
	if err != nil {
		return problems.ServiceUnavailable("Could not connect to FintechApp session validator.", url)
	}
	if resp.StatusCode() != 200 {
		return problems.Unauthorized("Invalid token or session.", url)
	}
	if out.JWTToken != "" {
		s.token = out.JWTToken
	}
	return nil
}

// Authenticate proactively re-validates the session with the remote provider.
func (s *FintechApp) Authenticate(ctx context.Context) error {
	return s.validateSession(ctx)
}

func (s *FintechApp) GetBalance(ctx context.Context) (int, error) {
	if err := s.validateSession(ctx); err != nil {
		return 0, err
	}
	url := "/api/v1/users/" + s.auth.UserID + "/coins"
	var out struct {
		Balance int `json:"balance"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(s.headers()).
		SetResult(&out).
		Get(url)
	if err != nil {
		return 0, problems.ServiceUnavailable("Connection error while fetching FintechApp balance", url)
	}
	if resp.StatusCode() == 401 {
		return 0, problems.Unauthorized("Invalid JWT token or user ID", url)
	}
	if !resp.IsSuccess() {
		return 0, problems.ServiceUnavailable("Unable to fetch FintechApp balance", url)
	}
	return out.Balance, nil
}

func (s *FintechApp) DeductPoints(ctx context.Context, amount int, reference, description string) error {
	if err := s.validateSession(ctx); err != nil {
		return err
	}
	url := "/api/v1/users/" + s.auth.UserID + "/coins/deduct"
	if reference == "" {
		reference = "booking"
	}
	if description == "" {
		description = "Flight booking"
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeaders(s.headers()).
		SetBody(map[string]any{
			"amount":       amount,
			"reference_id": reference,
			"description":  description,
		}).
		Post(url)
	if err != nil {
		return problems.ServiceUnavailable("Connection error during coin deduction", url)
	}
	switch {
	case resp.StatusCode() == 403:
		return problems.Forbidden("Insufficient balance", url)
	case resp.StatusCode() == 401:
		return problems.Unauthorized("Invalid JWT token or user ID", url)
	case !resp.IsSuccess():
		return problems.ServiceUnavailable("Failed to deduct coins from FintechApp", url)
	}
	return nil
}

// RefundPoints is intentionally absent for FintechApp.
func (s *FintechApp) RefundPoints(ctx context.Context, amount int) error {
	return problems.NotSupported("Refunds are not supported for FintechApp.", "")
}

// RequiresApproval is always false for FintechApp; no remote call is made.
func (s *FintechApp) RequiresApproval(ctx context.Context, amount int, reference string) (bool, error) {
	return false, nil
}

// ToUSD: 1 coin = $1.
func (s *FintechApp) ToUSD(amount float64) float64 { return amount }

// ApplyCashback retains 98% of the amount (2% cashback).
func (s *FintechApp) ApplyCashback(amount float64) float64 { return amount * 0.98 }
