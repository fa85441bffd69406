// Package config loads environment-driven settings and the accounts file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the relay.
type Config struct {
	Port string

	// Accounts file (YAML) describing the trading accounts.
	AccountsPath string

	// Journal database.
	DBPath string

	// Auth for mutating admin endpoints.
	JWTSecret string

	// Sizing: fraction of free balance usable for new orders, absorbs
	// fee/slippage drift between sizing and execution.
	SafetyMargin float64

	// Periodic position cache refresh.
	RefreshInterval time.Duration

	// Keep-alive self ping (disabled when URL is empty).
	KeepAliveURL      string
	KeepAliveInterval time.Duration

	// Execution toggle at boot; can be flipped at runtime via the API.
	ExecutionEnabled bool

	// Logging
	LogLevel  string // "debug", "info", "warn", "error"
	LogPretty bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		AccountsPath:      getEnv("ACCOUNTS_PATH", "./accounts.yaml"),
		DBPath:            getEnv("DB_PATH", "./data/relay.db"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		SafetyMargin:      getEnvFloat("SAFETY_MARGIN", 0.985),
		RefreshInterval:   getEnvDuration("REFRESH_INTERVAL", 60*time.Second),
		KeepAliveURL:      os.Getenv("KEEPALIVE_URL"),
		KeepAliveInterval: getEnvDuration("KEEPALIVE_INTERVAL", 280*time.Second),
		ExecutionEnabled:  getEnv("EXECUTION_ENABLED", "true") == "true",
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogPretty:         getEnv("LOG_PRETTY", "true") == "true",
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
