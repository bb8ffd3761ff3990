// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string
	IdempotencyTTL     time.Duration
	// RateLimitWriteMax of zero disables write rate limiting.
	RateLimitWriteMax int
	RateLimitWindow   time.Duration
	BodyLimitBytes    int64
	ShutdownTimeout   time.Duration
	// HSTSMaxAge defaults to one year in production and off elsewhere.
	HSTSMaxAge time.Duration
	Obs        ObsConfig
}

// ObsConfig controls logging, metrics, tracing and health probe settings.
type ObsConfig struct {
	LogFormat          string
	LogLevel           string
	EnablePrometheus   bool
	MetricsNamespace   string
	MetricsBucketsMS   string
	EnableTracing      bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampling    float64
	ReadyDBTimeout     time.Duration
	ReadyRedisTimeout  time.Duration
	EnablePprof        bool
	PprofBasicAuthUser string
	PprofBasicAuthPass string
}

// Load reads configuration from the process environment, after merging an
// optional .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()
	k, err := environment()
	if err != nil {
		return nil, err
	}
	return build(reader{k})
}

// LoadForTests loads from the environment with overrides applied on top. An
// empty override value hides the variable. The process environment is not
// modified.
func LoadForTests(overrides map[string]string) (*Config, error) {
	k, err := environment()
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if value == "" {
			k.Delete(key)
			continue
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}
	return build(reader{k})
}

func environment() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return k, nil
}

func build(env reader) (*Config, error) {
	appEnv := env.str("APP_ENV", "development")
	hstsDefault := time.Duration(0)
	if appEnv == "production" {
		hstsDefault = 365 * 24 * time.Hour
	}

	cfg := &Config{
		AppEnv:             appEnv,
		Port:               env.str("PORT", "8080"),
		DatabaseURL:        env.str("DATABASE_URL", ""),
		DBAutoMigrate:      env.boolean("DB_AUTO_MIGRATE", true),
		RedisURL:           env.str("REDIS_URL", ""),
		CORSAllowedOrigins: env.list("CORS_ALLOWED_ORIGINS"),
		IdempotencyTTL:     env.duration("IDEMPOTENCY_TTL", 24*time.Hour),
		RateLimitWriteMax:  env.integer("RATE_LIMIT_WRITE_MAX", 60),
		RateLimitWindow:    env.duration("RATE_LIMIT_WINDOW", time.Minute),
		BodyLimitBytes:     int64(env.integer("BODY_LIMIT_BYTES", 1<<20)),
		ShutdownTimeout:    env.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HSTSMaxAge:         env.duration("SECURE_HSTS_MAX_AGE", hstsDefault),
		Obs: ObsConfig{
			LogFormat:          env.str("OBS_LOG_FORMAT", "json"),
			LogLevel:           env.str("OBS_LOG_LEVEL", "info"),
			EnablePrometheus:   env.boolean("OBS_ENABLE_PROMETHEUS", true),
			MetricsNamespace:   env.str("OBS_METRICS_NAMESPACE", "invoice"),
			MetricsBucketsMS:   env.str("OBS_METRICS_BUCKETS_MS", ""),
			EnableTracing:      env.boolean("OBS_ENABLE_TRACING", false),
			TracingExporter:    env.str("OBS_TRACING_EXPORTER", "otlp"),
			OTLPEndpoint:       env.str("OBS_OTLP_ENDPOINT", ""),
			TracingSampling:    env.float("OBS_TRACING_SAMPLING_RATIO", 1),
			ReadyDBTimeout:     env.millis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			ReadyRedisTimeout:  env.millis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
			EnablePprof:        env.boolean("OBS_ENABLE_PPROF", false),
			PprofBasicAuthUser: env.str("SECURE_PPROF_BASIC_AUTH_USER", ""),
			PprofBasicAuthPass: env.str("SECURE_PPROF_BASIC_AUTH_PASS", ""),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RateLimitWriteMax < 0 {
		return nil, errors.New("RATE_LIMIT_WRITE_MAX must not be negative")
	}
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

// AllowedOrigins returns the CORS origins, allowing any origin when none are set.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.CORSAllowedOrigins
}

// reader reads typed values, falling back to def when a variable is unset,
// blank or malformed.
type reader struct {
	k *koanf.Koanf
}

func (r reader) raw(key string) string {
	return strings.TrimSpace(r.k.String(key))
}

func (r reader) str(key, def string) string {
	if v := r.raw(key); v != "" {
		return v
	}
	return def
}

func (r reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.raw(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r reader) boolean(key string, def bool) bool {
	switch strings.ToLower(r.raw(key)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return def
}

func (r reader) integer(key string, def int) int {
	if v, err := strconv.Atoi(r.raw(key)); err == nil {
		return v
	}
	return def
}

func (r reader) float(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(r.raw(key), 64); err == nil {
		return v
	}
	return def
}

func (r reader) duration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(r.raw(key)); err == nil {
		return v
	}
	return def
}

func (r reader) millis(key string, def int) time.Duration {
	return time.Duration(r.integer(key, def)) * time.Millisecond
}
