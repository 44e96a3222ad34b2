package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/gst"
	"github.com/musharafmush/pos-sub010/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	BusinessState  gst.StateCode
	DefaultGSTRate decimal.Decimal
	Currency       string
	Location       *time.Location

	OfferCacheTTL  time.Duration
	IdempotencyTTL time.Duration
	RateLimit      string
	MigrateOnStart bool
	AuditEnabled   bool

	LogFormat      string
	LogLevel       string
	MetricsEnabled bool
	TracingEnabled bool
	OTLPEndpoint   string
	ServiceName    string

	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		Currency:           strings.ToUpper(valueOrDefault(k.String("CURRENCY"), "INR")),
		OfferCacheTTL:      parseDuration(k.String("OFFER_CACHE_TTL"), "1m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "300-M"),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		AuditEnabled:       parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsEnabled:     parseBoolDefault(k.String("METRICS_ENABLED"), true),
		TracingEnabled:     parseBool(k.String("TRACING_ENABLED")),
		OTLPEndpoint:       strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		ServiceName:        valueOrDefault(k.String("OTEL_SERVICE_NAME"), "pos-billing"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	state, err := gst.ParseState(k.String("BUSINESS_STATE"))
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_STATE: %w", err)
	}
	cfg.BusinessState = state

	rate, err := parseRate(k.String("DEFAULT_GST_RATE"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_GST_RATE: %w", err)
	}
	cfg.DefaultGSTRate = rate

	loc, err := time.LoadLocation(valueOrDefault(k.String("TIMEZONE"), "Asia/Kolkata"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Billing returns the settings quotes are computed under.
func (c *Config) Billing() pricing.Settings {
	return pricing.Settings{
		Supplier: c.BusinessState,
		Resolver: gst.NewResolver(c.DefaultGSTRate),
		Location: c.Location,
		Currency: c.Currency,
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseRate(value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return gst.DefaultRate, nil
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := gst.ValidateRate(rate); err != nil {
		return decimal.Decimal{}, err
	}
	return rate, nil
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
