// Package config handles loading and managing application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Event source kinds.
const (
	EventSourceSSE   = "sse"
	EventSourceRedis = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Ryfty API configuration
	Ryfty RyftyConfig

	// Payment status event delivery
	Events EventsConfig

	Redis RedisConfig

	// Payment flow timings
	Payments PaymentsConfig

	Fees FeesConfig

	Log LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          string
	GinMode       string // "debug", "release", or "test"
	AllowedOrigin string
}

// RyftyConfig holds Ryfty API configuration.
type RyftyConfig struct {
	BaseURL string
	Timeout time.Duration
}

// EventsConfig selects where payment status events come from.
type EventsConfig struct {
	Source string // "sse" or "redis"
	// StreamURL serves /events/{key}; defaults to the API URL.
	StreamURL string
	// HeaderTimeout bounds how long a stream may take to answer.
	HeaderTimeout time.Duration
}

// RedisConfig holds the Redis connection used for drafts and, optionally, events.
type RedisConfig struct {
	URL      string
	PoolSize int
}

// PaymentsConfig holds the flow controller settings.
type PaymentsConfig struct {
	ConfirmationTimeout time.Duration
	SuccessDelay        time.Duration
	FlowRetention       time.Duration
	DraftTTL            time.Duration
}

// FeesConfig holds the fee calculator settings.
type FeesConfig struct {
	PlatformRate decimal.Decimal
	// StrictSchedule rejects amounts beyond the gateway tariff instead of charging nothing.
	StrictSchedule bool
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables, after loading a .env file
// from the working directory when one exists.
// Returns a Config struct with all settings populated.
func Load() *Config {
	_ = godotenv.Load()

	apiURL := getEnv("RYFTY_API_URL", "http://localhost:5000")
	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			GinMode:       getEnv("GIN_MODE", "debug"),
			AllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),
		},
		Ryfty: RyftyConfig{
			BaseURL: apiURL,
			Timeout: getEnvDuration("RYFTY_API_TIMEOUT", 30*time.Second),
		},
		Events: EventsConfig{
			Source:        getEnv("EVENT_SOURCE", EventSourceSSE),
			StreamURL:     getEnv("EVENTS_URL", apiURL),
			HeaderTimeout: getEnvDuration("EVENTS_HEADER_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Payments: PaymentsConfig{
			ConfirmationTimeout: getEnvDuration("PAYMENT_CONFIRMATION_TIMEOUT", 5*time.Minute),
			SuccessDelay:        getEnvDuration("PAYMENT_SUCCESS_DELAY", 2*time.Second),
			FlowRetention:       getEnvDuration("FLOW_RETENTION", 30*time.Minute),
			DraftTTL:            getEnvDuration("DRAFT_TTL", 7*24*time.Hour),
		},
		Fees: FeesConfig{
			PlatformRate:   getEnvDecimal("PLATFORM_FEE_RATE", decimal.RequireFromString("0.05")),
			StrictSchedule: getEnvBool("STRICT_FEE_SCHEDULE", false),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate checks that required configuration values are set and consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.Ryfty.BaseURL == "" {
		errs = append(errs, errors.New("RYFTY_API_URL is required"))
	}
	if c.Events.Source != EventSourceSSE && c.Events.Source != EventSourceRedis {
		errs = append(errs, fmt.Errorf("EVENT_SOURCE must be %q or %q", EventSourceSSE, EventSourceRedis))
	}
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.Payments.ConfirmationTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_CONFIRMATION_TIMEOUT must be positive"))
	}
	if c.Fees.PlatformRate.IsNegative() || c.Fees.PlatformRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("PLATFORM_FEE_RATE must be in [0, 1)"))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a time.Duration ("90s", "5m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvDecimal retrieves an environment variable as an exact decimal.
func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
