// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Tenant seeding
	TenantSeedFile string // optional YAML file overriding the built-in seed

	// Loyalty provider endpoints + credentials
	CoffeeChainAPIURL string
	CoffeeChainAPIKey string
	TelcoCorpAPIURL   string
	TelcoCorpClientID string
	TelcoCorpSecret   string
	FintechAppAPIURL  string
	ProviderTimeout   time.Duration

	// Duffel flight-offer provider
	DuffelAPIURL     string
	DuffelAPIKey     string
	DuffelAPIVersion string
	DuffelTimeout    time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:      env("GATEWAY_ENV", "dev"),
		HTTPAddr: env("GATEWAY_HTTP_ADDR", ":8080"),

		RedisURL:    env("REDIS_URL", ""),
		DatabaseURL: env("DATABASE_URL", ""),

		TenantSeedFile: env("TENANT_SEED_FILE", ""),

		CoffeeChainAPIURL: env("COFFEECHAIN_API_URL", "http://localhost:9001"),
		CoffeeChainAPIKey: env("COFFEECHAIN_API_KEY", ""),
		TelcoCorpAPIURL:   env("TELCOCORP_API_URL", "http://localhost:9002"),
		TelcoCorpClientID: env("TELCOCORP_CLIENT_ID", ""),
		TelcoCorpSecret:   env("TELCOCORP_CLIENT_SECRET", ""),
		FintechAppAPIURL:  env("FINTECHAPP_API_URL", "http://localhost:9003"),
		ProviderTimeout:   envDur("PROVIDER_TIMEOUT_SEC", 5) * time.Second,

		DuffelAPIURL:     env("DUFFEL_API_URL", "https://api.duffel.com/air"),
		DuffelAPIKey:     env("DUFFEL_API_KEY", ""),
		DuffelAPIVersion: env("DUFFEL_API_VERSION", "v2"),
		DuffelTimeout:    envDur("DUFFEL_TIMEOUT_SEC", 15) * time.Second,
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory tenant and booking stores for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
