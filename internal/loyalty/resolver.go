package loyalty

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"loyaltygw/pkg/problems"
	"loyaltygw/pkg/tenants"
)

// Resolve maps a tenant slug (case-insensitive) to its strategy variant.
// A fresh instance is returned per call, bound to the given auth context;
// strategies are never cached or shared across requests.
func Resolve(t tenants.Tenant, auth AuthContext, timeout time.Duration, log *zap.SugaredLogger) (Strategy, error) {
	switch strings.ToLower(t.Slug) {
	case "coffeechain":
		return NewCoffeeChain(t, auth, timeout, log), nil
	case "telcocorp":
		return NewTelcoCorp(t, auth, timeout, log), nil
	case "fintechapp":
		return NewFintechApp(t, auth, timeout, log), nil
	default:
		return nil, problems.NotSupported("No loyalty strategy implemented for tenant: "+t.Slug, "")
	}
}
