package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/twofactor/pkg/totpx"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"

	ScratchpadMemory = "memory"
	ScratchpadRedis  = "redis"
)

type Config struct {
	Issuer     string // Optional: issuer shown in authenticator apps (default: twofactor)
	MaxRetries int    // Optional: failed codes allowed per login session (default: 4)
	Skew       uint   // Optional: accepted TOTP periods either side of now, 0 accepts only the current period (default: 1)

	Store         string        // Optional: attribute store (sqlite, memory) (default: sqlite)
	DatabaseFile  string        // Optional: path to SQLite database file (default: ./twofactor.db)
	MasterKeyPath string        // Optional: path to master key used to seal secrets at rest
	Scratchpad    string        // Optional: login session scratchpad (memory, redis) (default: memory)
	RedisURL      string        // Required for the redis scratchpad
	SessionTTL    time.Duration // Optional: idle lifetime of a login session (default: 10m)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Scratchpad sweep interval (default: 1m)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               getEnvOrDefault("TWOFACTOR_ISSUER", "twofactor"),
		MaxRetries:           getEnvIntOrDefault("TWOFACTOR_MAX_RETRIES", 4),
		Store:                getEnvOrDefault("TWOFACTOR_STORE", StoreSQLite),
		DatabaseFile:         getEnvOrDefault("TWOFACTOR_DATABASE_FILE", "twofactor.db"),
		MasterKeyPath:        os.Getenv("TWOFACTOR_MASTER_KEY_PATH"),
		Scratchpad:           getEnvOrDefault("TWOFACTOR_SCRATCHPAD", ScratchpadMemory),
		RedisURL:             os.Getenv("TWOFACTOR_REDIS_URL"),
		SessionTTL:           getEnvDurationOrDefault("TWOFACTOR_SESSION_TTL", 10*time.Minute),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Minute),
	}

	// A negative or unparsable skew keeps the default.
	cfg.Skew = totpx.DefaultSkew
	if skew := getEnvIntOrDefault("TWOFACTOR_SKEW", totpx.DefaultSkew); skew >= 0 {
		cfg.Skew = uint(skew)
	}

	return cfg
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate rejects driver names and combinations New cannot build.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	switch c.Scratchpad {
	case ScratchpadMemory:
	case ScratchpadRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: TWOFACTOR_REDIS_URL is required for the redis scratchpad", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown scratchpad %q", ErrInvalidConfig, c.Scratchpad)
	}

	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max retries must be positive", ErrInvalidConfig)
	}
	return nil
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

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
