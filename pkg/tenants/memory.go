// pkg/tenants/memory.go
package tenants

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memProvider struct {
	log    *zap.SugaredLogger
	bySlug map[string]Tenant
}

// NewMemoryProvider builds an in-memory provider from seed entries. Used for
// dev without a database and throughout the test suites. The registry is
// read-only after construction, so unsynchronized concurrent reads are safe.
func NewMemoryProvider(entries []SeedEntry, log *zap.SugaredLogger) Provider {
	p := &memProvider{log: log, bySlug: map[string]Tenant{}}
	for _, e := range entries {
		p.bySlug[e.Slug] = Tenant{
			ID:                 uuid.NewString(),
			Slug:               e.Slug,
			Name:               e.Name,
			AuthMethod:         e.AuthMethod,
			BaseURL:            e.BaseURL,
			RateLimitPerMinute: e.RateLimitPerMinute,
			Config:             e.Config,
			ConfigValid:        e.Config != nil,
		}
	}
	return p
}

func (m *memProvider) ResolveTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	if t, ok := m.bySlug[slug]; ok {
		return t, nil
	}
	return Tenant{}, errors.New("tenant not found")
}

func (m *memProvider) ListTenants(ctx context.Context) ([]Tenant, error) {
	out := make([]Tenant, 0, len(m.bySlug))
	for _, t := range m.bySlug {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
