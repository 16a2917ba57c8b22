// Package config loads the server configuration from environment variables.
//
// Config is read once at boot and treated as immutable afterwards. Required
// values that are missing are reported together in a single error so an
// operator can fix them all in one go.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	SessionStoreSQLite = "sqlite"
	SessionStoreRedis  = "redis"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds every setting the server needs.
type Config struct {
	// Server
	Port int

	// Database
	DBPath string

	// Auth
	JWTSecret  string
	TokenTTL   time.Duration
	SessionTTL time.Duration
	BcryptCost int

	// Session store
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cookie
	CookieSecure bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.SessionStore = strings.ToLower(getEnvString("SESSION_STORE", SessionStoreSQLite))
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.SessionStore == SessionStoreRedis && cfg.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBPath = getEnvString("DB_PATH", "data/todos.db")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 15*time.Minute)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", LogFormatText))

	port, err := strconv.Atoi(getEnvString("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.SessionStore != SessionStoreSQLite && c.SessionStore != SessionStoreRedis {
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q",
			SessionStoreSQLite, SessionStoreRedis, c.SessionStore))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be %q or %q, got %q",
			LogFormatText, LogFormatJSON, c.LogFormat))
	}

	return errors.Join(errs...)
}

// SlogLevel returns LogLevel as a slog.Level. Load has already rejected
// unknown values, so anything unparseable here means Info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
