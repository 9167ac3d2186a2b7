// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Legacy backend
	BackendURL        string // Base URL of the PHP RPC service, no trailing slash
	BackendObjectCode string // Default objectcode query discriminator

	// Reports database (the one DB-backed endpoint, optional)
	DatabaseURL string

	// Session cookie
	CookieSecure bool

	// Security
	AllowedOrigins []string
	RateLimitRPM   int
	LoginRateRPM   int

	// Observability
	OTLPEndpoint string
}

const (
	DefaultPort       = "8080"
	DefaultEnv        = "development"
	DefaultLogLevel   = "info"
	DefaultObjectCode = "WMSDASH"
	DefaultRateLimit  = 120
	DefaultLoginRate  = 10
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
//
// BACKEND_URL may be empty: the RPC client reports MissingConfig at call
// time so misconfiguration surfaces as a 500 on the affected routes
// instead of a crash at boot.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		BackendURL:        strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		BackendObjectCode: getEnv("BACKEND_OBJECTCODE", DefaultObjectCode),
		DatabaseURL:       os.Getenv("DATABASE_URL"), // Optional, reports endpoint disabled if not set
		CookieSecure:      getEnvBool("COOKIE_SECURE", false),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RateLimitRPM:      int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		LoginRateRPM:      int(getEnvInt64("LOGIN_RATE_RPM", DefaultLoginRate)),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent
func (c *Config) Validate() error {
	if c.BackendURL != "" && !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("BACKEND_URL must be an http(s) URL, got %q", c.BackendURL)
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}
	if c.LoginRateRPM <= 0 {
		return fmt.Errorf("LOGIN_RATE_RPM must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
