package tenants

import (
	"context"
)

type Provider interface {
	// Resolve tenant from the X-Tenant-ID header value.
	ResolveTenantBySlug(ctx context.Context, slug string) (Tenant, error)
	// List all registered tenants (internal/admin surface).
	ListTenants(ctx context.Context) ([]Tenant, error)
}
