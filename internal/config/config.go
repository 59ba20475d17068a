package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the honeypot service.
type Config struct {
	BindAddr         string
	Platform         string
	MetricsNamespace string
	AllowAnyOrigin   bool
	ShutdownTimeout  time.Duration

	CallbackURL     string
	CallbackAPIKey  string
	CallbackTimeout time.Duration

	MinTurnsBeforeFinal int
	AuditFilePath       string
	PersonaFile         string
	DatabaseURL         string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	port := envOrDefault("PORT", "10000")
	cfg := Config{
		BindAddr:            envOrDefault("DECOY_BIND_ADDR", ":"+port),
		Platform:            envOrDefault("DECOY_PLATFORM", "local"),
		MetricsNamespace:    envOrDefault("DECOY_METRICS_NAMESPACE", "decoy"),
		CallbackURL:         envTrimmed("DECOY_CALLBACK_URL"),
		CallbackAPIKey:      envTrimmed("DECOY_API_KEY"),
		AuditFilePath:       envOrDefault("DECOY_AUDIT_FILE", "honeypot_output.jsonl"),
		PersonaFile:         envTrimmed("DECOY_PERSONA_FILE"),
		DatabaseURL:         envTrimmed("DATABASE_URL"),
		CallbackTimeout:     5 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		MinTurnsBeforeFinal: 6,
	}

	var err error
	cfg.CallbackTimeout, err = durationFromEnv("DECOY_CALLBACK_TIMEOUT", cfg.CallbackTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("DECOY_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MinTurnsBeforeFinal, err = intFromEnv("DECOY_MIN_TURNS", cfg.MinTurnsBeforeFinal)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("DECOY_ALLOW_ANY_ORIGIN", false)
	if err != nil {
		return Config{}, err
	}

	if cfg.CallbackTimeout <= 0 {
		return Config{}, fmt.Errorf("DECOY_CALLBACK_TIMEOUT must be positive")
	}
	if cfg.MinTurnsBeforeFinal < 1 {
		return Config{}, fmt.Errorf("DECOY_MIN_TURNS must be at least 1")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
