package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Environment           string
	DatabaseDriver        string
	DatabaseURL           string
	APIAddr               string
	GRPCAddr              string
	RedisAddr             string
	JWTSecret             string
	JWTIssuer             string
	MaxBodyBytes          int64
	RateLimitCapacity     int
	RateLimitRefillPerSec float64
	IPAllowlist           []string
	CatalogCacheTTL       time.Duration
	CatalogFile           string
	TLSCertFile           string
	TLSKeyFile            string
}

const (
	defaultAPIAddr      = ":8080"
	defaultGRPCAddr     = ":50051"
	defaultMaxBodyBytes = 1 << 20
	defaultCacheTTL     = 5 * time.Minute
	minJWTSecretLength  = 32
)

// Load reads configuration from the environment. Each envFile that exists is
// loaded first without overriding variables already set; with no arguments a
// .env in the working directory is tried.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Environment:    os.Getenv("APP_ENV"),
		DatabaseDriver: getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIAddr:        getenv("API_ADDR", defaultAPIAddr),
		GRPCAddr:       getenv("GRPC_ADDR", defaultGRPCAddr),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTIssuer:      getenv("JWT_ISSUER", "ledger-core"),
		IPAllowlist:    splitList(os.Getenv("IP_ALLOWLIST")),
		CatalogFile:    os.Getenv("CATALOG_FILE"),
		TLSCertFile:    os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:     os.Getenv("TLS_KEY_FILE"),
	}

	var errs []error
	var err error
	if cfg.MaxBodyBytes, err = parseInt64("MAX_BODY_BYTES", defaultMaxBodyBytes); err != nil {
		errs = append(errs, err)
	}
	capacity, err := parseInt64("RATE_LIMIT_CAPACITY", 0)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RateLimitCapacity = int(capacity)
	if cfg.RateLimitRefillPerSec, err = parseFloat("RATE_LIMIT_REFILL_PER_SEC", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.CatalogCacheTTL, err = parseDuration("CATALOG_CACHE_TTL", defaultCacheTTL); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}

	if c.IsProduction() {
		if c.DatabaseDriver != "postgres" {
			return errors.New("DATABASE_DRIVER must be postgres in " + c.Environment)
		}
		if len(c.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in %s", minJWTSecretLength, c.Environment)
		}
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be positive")
	}
	return nil
}

// IsProduction reports whether the environment enforces production rules
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

// RateLimitEnabled reports whether a token bucket should be installed
func (c *Config) RateLimitEnabled() bool {
	return c.RedisAddr != "" && c.RateLimitCapacity > 0 && c.RateLimitRefillPerSec > 0
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
