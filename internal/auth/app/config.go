package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer   string // Issuer claim for tokens
	Audience string // Audience claim for tokens

	AccessTokenSecret  string // Required: HS256 key for access tokens
	RefreshTokenSecret string // Required: HS256 key for refresh tokens, must differ

	AccessTokenTTL  time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Optional: refresh token lifetime (default: 14 days)
	RememberMeTTL   time.Duration // Optional: remember-me refresh lifetime (default: 90 days)

	DatabaseFile string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	RedisURL     string // Optional: redis URL for the session cache; empty means in-process only

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Stale session sweep interval (default: 6h)
}

// ErrMissingSecrets is returned when either signing secret is absent. The
// service refuses to fall back to a generated key so tokens survive
// restarts.
var ErrMissingSecrets = errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must be set")

func LoadConfig() (Config, error) {
	cfg := Config{
		Issuer:             getEnvOrDefault("AUTH_ISSUER", "orgauth"),
		Audience:           getEnvOrDefault("AUTH_AUDIENCE", "orgauth"),
		AccessTokenSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshTokenSecret: os.Getenv("AUTH_REFRESH_SECRET"),

		AccessTokenTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", 14*24*time.Hour),
		RememberMeTTL:   getEnvDurationOrDefault("AUTH_REMEMBER_ME_TTL", 90*24*time.Hour),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		RedisURL:     os.Getenv("AUTH_REDIS_URL"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 6*time.Hour),
	}

	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return Config{}, ErrMissingSecrets
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
