// Package config reads the server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
)

// DevelopmentJWTSecret is used when JWT_SECRET is unset. Never rely on it in production.
const DevelopmentJWTSecret = "happiness-o-meter-dev-secret-change-me"

// Config holds every tunable of the server.
type Config struct {
	Port               string
	DataDir            string
	GinMode            string
	LogLevel           string
	CatalogPath        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	AMQPURL            string
	JWTSecret          string
	AdminToken         string // empty disables the /api/admin routes
	SessionTTL         time.Duration
	AllowedOrigins     []string
	RateLimitPerMin    int
	SessionLimitPerMin int
	CompleteLimitPerH  int
	RetentionDays      int
	LeaderboardRefresh time.Duration
}

// Load builds a Config from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		DataDir:       getEnvOrDefault("DATA_DIR", "./data"),
		GinMode:       os.Getenv("GIN_MODE"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		CatalogPath:   os.Getenv("CATALOG_PATH"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		JWTSecret:     getEnvOrDefault("JWT_SECRET", DevelopmentJWTSecret),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS",
			"http://localhost:3000,http://localhost:5173")),
	}

	var err error
	if cfg.RedisDB, err = getIntOrDefault("REDIS_DB", 0, 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMin, err = getIntOrDefault("RATE_LIMIT_PER_MIN", 60, 1); err != nil {
		return nil, err
	}
	if cfg.SessionLimitPerMin, err = getIntOrDefault("SESSION_RATE_LIMIT_PER_MIN", 10, 1); err != nil {
		return nil, err
	}
	if cfg.CompleteLimitPerH, err = getIntOrDefault("COMPLETE_RATE_LIMIT_PER_HOUR", 30, 1); err != nil {
		return nil, err
	}
	if cfg.RetentionDays, err = getIntOrDefault("RETENTION_DAYS", 365, 1); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDurationOrDefault("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AdminToken != "" && len(cfg.AdminToken) < 16 {
		return nil, apperrors.NewConfigurationError("ADMIN_TOKEN must be at least 16 characters", nil)
	}
	if cfg.LeaderboardRefresh, err = getDurationOrDefault("LEADERBOARD_REFRESH", 10*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UsesDevelopmentSecret reports whether tokens are signed with the built-in secret.
func (c *Config) UsesDevelopmentSecret() bool {
	return c.JWTSecret == DevelopmentJWTSecret
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue, min int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.NewConfigurationError(fmt.Sprintf("%s must be an integer", key), err)
	}
	if n < min {
		return 0, apperrors.NewConfigurationError(fmt.Sprintf("%s must be at least %d", key, min), nil)
	}
	return n, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.NewConfigurationError(fmt.Sprintf("%s must be a duration such as 10m", key), err)
	}
	if d <= 0 {
		return 0, apperrors.NewConfigurationError(fmt.Sprintf("%s must be positive", key), nil)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
