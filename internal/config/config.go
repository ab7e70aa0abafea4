// internal/config/config.go
//
// Process configuration read from the environment (optionally seeded from a
// .env file by main).
// Responsibilities:
//   - Defaults for every knob so a bare `go run .` works locally.
//   - Typed parsing of ints, bools and durations; malformed values fall back to
//     the default with a warning instead of aborting start-up.
//   - Validation of cross-field rules (backend-specific requirements).

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is everything main needs to wire the server.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string // "json" | "console"

	StoreBackend string
	RedisURL     string
	DBPath       string

	WordsFile    string // empty means the embedded list
	SettingsFile string // empty means defaults
	SeedWords    bool
	DailySalt    string

	SessionTTL    time.Duration
	SummaryTTL    time.Duration
	StartAttempts int
	RetryBackoff  time.Duration

	ClientOrigin      string
	JWTSecret         string
	JWTExpires        time.Duration
	AdminPasswordHash string // bcrypt; empty disables admin login
	Production        bool
}

// Load reads the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:      getEnv("PORT", "5175"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		RedisURL:     os.Getenv("REDIS_URL"),
		DBPath:       getEnv("DB_PATH", "./data/wordrush.db"),

		WordsFile:    os.Getenv("WORDS_FILE"),
		SettingsFile: os.Getenv("SETTINGS_FILE"),
		SeedWords:    getEnvBool("SEED_WORDS", true),
		DailySalt:    getEnv("DAILY_SALT", "local_dev_salt"),

		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		SummaryTTL:    getEnvDuration("SUMMARY_TTL", time.Hour),
		StartAttempts: getEnvInt("START_ATTEMPTS", 3),
		RetryBackoff:  getEnvDuration("RETRY_BACKOFF", 2*time.Second),

		ClientOrigin:      getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		JWTSecret:         getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpires:        time.Duration(getEnvInt("JWT_EXPIRES_HOURS", 12)) * time.Hour,
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		Production:        os.Getenv("NODE_ENV") == "production" || os.Getenv("APP_ENV") == "production",
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field rules.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.StoreBackend == BackendSQLite && c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required for the sqlite backend"))
	}
	if c.StartAttempts < 1 {
		errs = append(errs, errors.New("START_ATTEMPTS must be at least 1"))
	}
	if c.SessionTTL <= 0 || c.SummaryTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL and SUMMARY_TTL must be positive"))
	}
	if c.Production && c.JWTSecret == "dev_secret_change_me" {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Int("default", fallback).Msg("invalid int, using default")
		return fallback
	}
	return i
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Bool("default", fallback).Msg("invalid bool, using default")
		return fallback
	}
	return b
}
