package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type UpstreamConfig struct {
	AuthBaseURL    string
	CatalogBaseURL string
	RequestTimeout time.Duration
}

type SessionConfig struct {
	CookieName string
	Secret     string
}

type CacheConfig struct {
	CatalogTTL time.Duration
	RoleTTL    time.Duration
}

type RateLimitConfig struct {
	AuthPerSecond float64
	AuthBurst     int
}

type Config struct {
	ServerPort  string
	MetricsPort string
	PprofPort   string
	Upstream    UpstreamConfig
	Session     SessionConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
}

func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8091"),
		MetricsPort: getEnvOrDefault("METRICS_PORT", "9092"),
		PprofPort:   getEnvOrDefault("PPROF_PORT", "6060"),
		Upstream: UpstreamConfig{
			AuthBaseURL:    getEnvOrDefault("AUTH_API_BASE_URL", "http://localhost:8000/api/auth"),
			CatalogBaseURL: getEnvOrDefault("CATALOG_API_BASE_URL", "http://localhost:8000/api/catalog"),
			RequestTimeout: getDurationOrDefault("UPSTREAM_TIMEOUT", 15*time.Second),
		},
		Session: SessionConfig{
			CookieName: getEnvOrDefault("SESSION_COOKIE_NAME", "feastly_session"),
			Secret:     os.Getenv("SESSION_SECRET"),
		},
		Cache: CacheConfig{
			CatalogTTL: getDurationOrDefault("CATALOG_CACHE_TTL", 5*time.Minute),
			RoleTTL:    getDurationOrDefault("ROLE_CACHE_TTL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			AuthPerSecond: getFloatOrDefault("AUTH_RATE_PER_SECOND", 1),
			AuthBurst:     getIntOrDefault("AUTH_RATE_BURST", 5),
		},
	}

	if cfg.Session.Secret == "" {
		if os.Getenv("APP_ENV") == "production" {
			return nil, fmt.Errorf("SESSION_SECRET environment variable is required in production")
		}
		cfg.Session.Secret = "dev-session-secret-change-in-production"
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
