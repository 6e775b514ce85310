package tenants

import (
	"os"

	"gopkg.in/yaml.v3"

	"loyaltygw/pkg/config"
)

// SeedEntry is one tenant record in the seed set. The seed is idempotent:
// applying it repeatedly upserts on slug and never duplicates.
type SeedEntry struct {
	Slug               string         `yaml:"slug"`
	Name               string         `yaml:"name"`
	AuthMethod         string         `yaml:"auth_method"`
	BaseURL            string         `yaml:"base_url"`
	RateLimitPerMinute int            `yaml:"rate_limit_per_minute"`
	Config             map[string]any `yaml:"config"`
}

// DefaultSeed returns the built-in partner set: CoffeeChain (API key, Stars),
// TelcoCorp (OAuth2, Points, economy only) and FintechApp (JWT, Coins).
func DefaultSeed(cfg config.Config) []SeedEntry {
	return []SeedEntry{
		{
			Slug:               "coffeechain",
			Name:               "CoffeeChain",
			AuthMethod:         AuthAPIKey,
			BaseURL:            cfg.CoffeeChainAPIURL,
			RateLimitPerMinute: 100,
			Config: map[string]any{
				"currency":           "Stars",
				"currency_to_usd":    0.01,
				"approval_threshold": 50000,
				"id_header":          "X-CC-Member-ID",
				"auth_header":        "X-CC-API-Key",
				"api_key":            cfg.CoffeeChainAPIKey,
			},
		},
		{
			Slug:               "telcocorp",
			Name:               "TelcoCorp",
			AuthMethod:         AuthOAuth2,
			BaseURL:            cfg.TelcoCorpAPIURL,
			RateLimitPerMinute: 50,
			Config: map[string]any{
				"currency":            "Points",
				"currency_to_usd":     0.01,
				"allowed_cabin_class": "economy",
				"id_header":           "X-TC-Customer-ID",
				"client_id":           cfg.TelcoCorpClientID,
				"client_secret":       cfg.TelcoCorpSecret,
			},
		},
		{
			Slug:               "fintechapp",
			Name:               "FintechApp",
			AuthMethod:         AuthJWT,
			BaseURL:            cfg.FintechAppAPIURL,
			RateLimitPerMinute: 200,
			Config: map[string]any{
				"currency":        "Coins",
				"currency_to_usd": 1.0,
				"id_header":       "X-FA-User-ID",
				"user_id_header":  "X-FA-User-ID",
				"jwt_header":      "Authorization",
			},
		},
	}
}

// LoadSeed returns the seed set: the YAML seed file when configured,
// otherwise the built-in defaults.
func LoadSeed(cfg config.Config) ([]SeedEntry, error) {
	if cfg.TenantSeedFile == "" {
		return DefaultSeed(cfg), nil
	}
	b, err := os.ReadFile(cfg.TenantSeedFile)
	if err != nil {
		return nil, err
	}
	var entries []SeedEntry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
