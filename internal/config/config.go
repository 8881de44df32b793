package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret  string
	AdminToken string

	SentryDSN string

	// Chain settlement. When ChainRPCURL is empty the dev submitter is used
	// and settlements are only logged.
	ChainRPCURL     string
	TreasuryAddress string

	RateLimitCapacity int
	RateLimitWindow   time.Duration
	CooldownWindow    time.Duration
	StoreTimeout      time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		RedisURL:          getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		ChainRPCURL:       getEnv("CHAIN_RPC_URL", ""),
		TreasuryAddress:   getEnv("TREASURY_ADDRESS", ""),
		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 10),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW_SECONDS", 60) * time.Second,
		CooldownWindow:    getEnvDuration("COOLDOWN_HOURS", 24) * time.Hour,
		StoreTimeout:      getEnvDuration("STORE_TIMEOUT_MILLIS", 2000) * time.Millisecond,
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Env == "production" && cfg.AdminToken == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN is required in production")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback))
}
