package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-driven settings of the HTTP service.
type Config struct {
	Port                    string
	DatabaseURL             string
	RuleSet                 string
	RedisURL                string
	RulesCacheTTL           time.Duration
	SlowAssessmentThreshold time.Duration
	OTELEnabled             bool
	OTELServiceName         string
}

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	port, err := Port("PORT", "8080")
	if err != nil {
		return nil, err
	}
	ttl, err := Duration("RULES_CACHE_TTL", 0)
	if err != nil {
		return nil, err
	}
	slow, err := Duration("SLOW_ASSESSMENT_THRESHOLD", 50*time.Millisecond)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                    port,
		DatabaseURL:             strings.TrimSpace(String("DATABASE_URL", "")),
		RuleSet:                 String("RULESET", "standard"),
		RedisURL:                strings.TrimSpace(String("REDIS_URL", "")),
		RulesCacheTTL:           ttl,
		SlowAssessmentThreshold: slow,
		OTELEnabled:             Bool("OTEL_ENABLED", false),
		OTELServiceName:         String("OTEL_SERVICE_NAME", "noshow"),
	}, nil
}

func String(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func RequiredString(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}

// Duration parses a Go duration such as "30s". Negative values are rejected.
func Duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration (got %q)", key, v)
	}
	return d, nil
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
