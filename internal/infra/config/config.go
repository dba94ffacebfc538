package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	LogLevel           string
	HTTPAddr           string
	Timezone           *time.Location
	CORSOrigins        []string
	StorageMode        string
	MongoURI           string
	MongoDB            string
	MongoTransactions  bool
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	Backend            BackendConfig
	RateLimitRPS       float64
	RateLimitBurst     int
}

// BackendConfig configures the retrying client for the remote listings API.
type BackendConfig struct {
	BaseURL       string
	HealthPath    string
	MaxAttempts   int
	BaseDelay     time.Duration
	Backoff       string
	RetryAll4xx   bool
	HealthTimeout time.Duration
	// DedupeInFlight shares concurrent identical GETs, such as readiness checks.
	DedupeInFlight bool
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageMode:      strings.ToLower(getEnv("STORAGE_MODE", StorageMemory)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "motorent"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		Backend: BackendConfig{
			BaseURL:    os.Getenv("BACKEND_BASE_URL"),
			HealthPath: getEnv("BACKEND_HEALTH_PATH", "/health"),
			Backoff:    strings.ToLower(getEnv("BACKEND_BACKOFF", "linear")),
		},
	}

	tz, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = parseDurationList("RETRY_BACKOFF", "1s,5s,30s"); err != nil {
		return Config{}, err
	}
	if cfg.Backend.MaxAttempts, err = parseIntEnv("BACKEND_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.Backend.BaseDelay, err = parseDurationEnv("BACKEND_BASE_DELAY", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Backend.RetryAll4xx, err = parseBoolEnv("BACKEND_RETRY_4XX", false); err != nil {
		return Config{}, err
	}
	if cfg.Backend.HealthTimeout, err = parseDurationEnv("BACKEND_HEALTH_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Backend.DedupeInFlight, err = parseBoolEnv("BACKEND_DEDUPE_INFLIGHT", true); err != nil {
		return Config{}, err
	}
	if cfg.MongoTransactions, err = parseBoolEnv("MONGO_TRANSACTIONS", true); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitRPS, err = parseFloatEnv("RATE_LIMIT_RPS", 20); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = parseIntEnv("RATE_LIMIT_BURST", 40); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageMode {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return fmt.Errorf("invalid STORAGE_MODE %q", c.StorageMode)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_BASE_URL %q", c.Backend.BaseURL)
	}
	if c.Backend.MaxAttempts < 1 {
		return fmt.Errorf("BACKEND_MAX_ATTEMPTS must be at least 1")
	}
	switch c.Backend.Backoff {
	case "linear", "exponential":
	default:
		return fmt.Errorf("invalid BACKEND_BACKOFF %q", c.Backend.Backoff)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationList(key, def string) ([]time.Duration, error) {
	var out []time.Duration
	for _, raw := range splitList(getEnv(key, def)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
