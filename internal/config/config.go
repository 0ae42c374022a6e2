package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/octobees/leads-generator/enricher/internal/dedupe"
	"github.com/octobees/leads-generator/enricher/internal/enrich"
	"github.com/octobees/leads-generator/enricher/internal/fetcher"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string
	DBMaxConns  int
	JWTSecret   string
	TokenTTL    time.Duration
	// APIClients maps client ids to bcrypt hashes of their secrets.
	APIClients      map[string]string
	RateLimitEnrich RateLimitConfig

	Fetch  fetcher.Config
	Enrich enrich.Config
	Dedupe dedupe.Config

	DefaultRegion   string
	ValidateEmailMX bool
	RulesFile       string
}

// Load reads configuration from environment variables and applies defaults.
// Every malformed value is reported, not just the first.
func Load() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		Port:        getEnv("PORT", "8090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  p.integer("DB_MAX_CONNS", 10),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    p.duration("JWT_TTL", 24*time.Hour),
		Fetch: fetcher.Config{
			Timeout:      p.duration("FETCH_TIMEOUT", 8*time.Second),
			MaxBytes:     int64(p.integer("FETCH_MAX_BYTES", 2<<20)),
			MaxRedirects: p.integer("FETCH_MAX_REDIRECTS", 5),
			UserAgent:    os.Getenv("FETCH_USER_AGENT"),
		},
		Enrich: enrich.Config{
			Workers:       p.integer("ENRICH_WORKERS", 10),
			FallbackPages: p.integer("ENRICH_FALLBACK_PAGES", 3),
		},
		Dedupe: dedupe.Config{
			NameThreshold:  p.float("DEDUP_NAME_THRESHOLD", 0.85),
			RadiusMeters:   p.float("DEDUP_RADIUS_METERS", 150),
			CoordPrecision: p.integer("DEDUP_COORD_PRECISION", 3),
		},
		DefaultRegion:   strings.ToUpper(getEnv("DEFAULT_REGION", "ID")),
		ValidateEmailMX: p.boolean("VALIDATE_EMAIL_MX", false),
		RulesFile:       os.Getenv("RULES_FILE"),
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_ENRICH", "30/min"))
	if err != nil {
		p.fail(fmt.Errorf("invalid RATE_LIMIT_ENRICH value: %w", err))
	}
	cfg.RateLimitEnrich = rl

	clients, err := parseClients(os.Getenv("API_CLIENTS"))
	if err != nil {
		p.fail(fmt.Errorf("invalid API_CLIENTS value: %w", err))
	}
	cfg.APIClients = clients

	if cfg.DBMaxConns <= 0 {
		p.fail(errors.New("DB_MAX_CONNS must be positive"))
	}
	if cfg.Fetch.Timeout <= 0 {
		p.fail(errors.New("FETCH_TIMEOUT must be positive"))
	}
	if cfg.Fetch.MaxBytes <= 0 {
		p.fail(errors.New("FETCH_MAX_BYTES must be positive"))
	}
	if cfg.Fetch.MaxRedirects < 0 {
		p.fail(errors.New("FETCH_MAX_REDIRECTS must not be negative"))
	}
	if err := cfg.Enrich.Validate(); err != nil {
		p.fail(err)
	}
	if err := cfg.Dedupe.Validate(); err != nil {
		p.fail(err)
	}
	if len(cfg.DefaultRegion) != 2 {
		p.fail(fmt.Errorf("DEFAULT_REGION must be a two-letter region code, got %q", cfg.DefaultRegion))
	}

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

// AuthEnabled reports whether bearer tokens are required on write routes.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

type parser struct {
	errs []error
}

func (p *parser) fail(err error) {
	p.errs = append(p.errs, err)
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return fallback
	}
	return d
}

func (p *parser) integer(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return fallback
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return fallback
	}
	return v
}

func (p *parser) boolean(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		p.fail(fmt.Errorf("invalid %s value %q: %w", key, raw, err))
		return fallback
	}
	return v
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

// parseClients reads "id:hash,id:hash". bcrypt hashes contain no commas.
func parseClients(value string) (map[string]string, error) {
	clients := map[string]string{}
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, hash, ok := strings.Cut(entry, ":")
		id, hash = strings.TrimSpace(id), strings.TrimSpace(hash)
		if !ok || id == "" || hash == "" {
			return nil, fmt.Errorf("expected <client_id>:<bcrypt_hash>, got %q", entry)
		}
		if _, dup := clients[id]; dup {
			return nil, fmt.Errorf("duplicate client id %q", id)
		}
		clients[id] = hash
	}
	return clients, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
