// Package config loads the sync server's configuration from environment
// variables. There is no flag parsing here; CLI ergonomics are explicitly
// out of scope for this repository.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs to start.
type Config struct {
	Address                 string
	DatabaseURL             string
	DatabaseMaxConnections  int
	DatabaseAcquireTimeout  time.Duration
	RequestTimeout          time.Duration
	BodyLimitBytes          int64
	JWTSecretBase64         string
	AllowRegistration       bool
	LogLevel                string
}

const defaultBodyLimitBytes = 5 * 1024 * 1024 // 5 MiB

// Load reads configuration from the environment, applying the defaults
// from the server configuration table. DATABASE_URL and JWT_SECRET are
// required; their absence is a fatal startup error, not something the
// server can run in a degraded mode for.
func Load() (Config, error) {
	cfg := Config{
		Address:                getEnv("ADDRESS", "0.0.0.0:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DatabaseMaxConnections: 5,
		DatabaseAcquireTimeout: 3 * time.Second,
		RequestTimeout:         5 * time.Second,
		BodyLimitBytes:         defaultBodyLimitBytes,
		JWTSecretBase64:        os.Getenv("JWT_SECRET"),
		AllowRegistration:      false,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecretBase64 == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	if v := os.Getenv("DATABASE_MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("DATABASE_MAX_CONNECTIONS: %w", err)
		}
		cfg.DatabaseMaxConnections = n
	}

	if v := os.Getenv("DATABASE_ACQUIRE_TIMEOUT"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("DATABASE_ACQUIRE_TIMEOUT: %w", err)
		}
		cfg.DatabaseAcquireTimeout = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("BODY_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("BODY_LIMIT: %w", err)
		}
		cfg.BodyLimitBytes = n
	}

	if v := os.Getenv("ALLOW_REGISTRATION"); v != "" {
		cfg.AllowRegistration = v == "true"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
