// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id uuid PRIMARY KEY,
  slug text UNIQUE NOT NULL,
  name text NOT NULL,
  auth_method text NOT NULL,
  base_url text NOT NULL,
  rate_limit_per_minute int NOT NULL DEFAULT 100,
  config jsonb NOT NULL DEFAULT '{}'::jsonb,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

// Seed upserts the given tenant entries keyed on slug. Tenants are read-only
// from the request path; this is the only write.
func Seed(ctx context.Context, dbPool *pgxpool.Pool, entries []SeedEntry) error {
	for _, e := range entries {
		cfgJSON, err := json.Marshal(e.Config)
		if err != nil {
			return err
		}
		_, err = dbPool.Exec(ctx, `INSERT INTO tenants(id,slug,name,auth_method,base_url,rate_limit_per_minute,config)
		  VALUES ($1,$2,$3,$4,$5,$6,$7)
		  ON CONFLICT (slug) DO UPDATE SET name=EXCLUDED.name,auth_method=EXCLUDED.auth_method,
		    base_url=EXCLUDED.base_url,rate_limit_per_minute=EXCLUDED.rate_limit_per_minute,
		    config=EXCLUDED.config,updated_at=NOW()`,
			uuid.NewString(), e.Slug, e.Name, e.AuthMethod, e.BaseURL, e.RateLimitPerMinute, cfgJSON)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanTenant(row interface{ Scan(dest ...any) error }) (Tenant, error) {
	var t Tenant
	var cfgJSON []byte
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.AuthMethod, &t.BaseURL, &t.RateLimitPerMinute, &cfgJSON); err != nil {
		return Tenant{}, errors.New("tenant not found")
	}
	// Config must deserialize to a mapping; anything else is a data fault the
	// middleware surfaces as a 500, so keep the tenant but mark it invalid.
	var raw any
	if err := json.Unmarshal(cfgJSON, &raw); err == nil {
		if m, ok := raw.(map[string]any); ok {
			t.Config = m
			t.ConfigValid = true
		}
	}
	return t, nil
}

// ResolveTenantBySlug fetches a tenant using its slug value.
func (p *pgProvider) ResolveTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx,
		`SELECT id,slug,name,auth_method,base_url,rate_limit_per_minute,config FROM tenants WHERE slug=$1`, slug)
	return scanTenant(row)
}

// ListTenants returns all registered tenants.
func (p *pgProvider) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := p.dbPool.Query(ctx,
		`SELECT id,slug,name,auth_method,base_url,rate_limit_per_minute,config FROM tenants ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
