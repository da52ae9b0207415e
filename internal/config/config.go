package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName     = "Karta"
	defaultAppEnv      = "development"
	defaultLogLevel    = "info"
	defaultLockTimeout = 3 * time.Second
	defaultGuardTTL    = 24 * time.Hour

	lockTimeoutMillisEnvVar = "LOCK_TIMEOUT_MS"
	lockTimeoutDurEnvVar    = "LOCK_TIMEOUT"
	guardTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	guardTTLDurEnvVar       = "IDEMPOTENCY_TTL"
)

// Config captures application runtime configuration loaded from environment
// variables. A .env file in the working directory is honored when present.
type Config struct {
	AppName      string
	AppEnv       string
	LogLevel     string
	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	LockTimeout  time.Duration
	GuardTTL     time.Duration
}

// Load reads configuration values from the environment and populates a
// Config instance. RedisURL and KafkaBrokers are optional: the duplicate
// guard and event publishing degrade gracefully without them.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getEnv("APP_NAME", defaultAppName),
		AppEnv:      getEnv("APP_ENV", defaultAppEnv),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LockTimeout: defaultLockTimeout,
		GuardTTL:    defaultGuardTTL,
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	if v := os.Getenv(lockTimeoutMillisEnvVar); v != "" {
		millis, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", lockTimeoutMillisEnvVar, err)
		}
		cfg.LockTimeout = time.Duration(millis) * time.Millisecond
	} else if v := os.Getenv(lockTimeoutDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", lockTimeoutDurEnvVar, err)
		}
		cfg.LockTimeout = d
	}

	if v := os.Getenv(guardTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", guardTTLSecondsEnvVar, err)
		}
		cfg.GuardTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(guardTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", guardTTLDurEnvVar, err)
		}
		cfg.GuardTTL = d
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.LockTimeout <= 0 {
		return Config{}, fmt.Errorf("lock timeout must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
