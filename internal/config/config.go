package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Database holds the relational connection options.
type Database struct {
	Disabled        bool          `yaml:"disabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	ConnectionLimit int           `yaml:"connection_limit"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// Local selects the dictionary behind the fallback store.
type Local struct {
	Backend        string `yaml:"backend"` // sqlite, redis or memory
	Path           string `yaml:"path"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
}

// App holds the runtime configuration.
type App struct {
	Env             string   `yaml:"env"`
	HTTPPort        string   `yaml:"http_port"`
	LogLevel        string   `yaml:"log_level"`
	LogPretty       bool     `yaml:"log_pretty"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	Strict          bool     `yaml:"strict"`
	SeedOnEmpty     bool     `yaml:"seed_on_empty"`
	Database        Database `yaml:"database"`
	Local           Local    `yaml:"local"`
}

// Defaults returns the configuration used for local development.
func Defaults() App {
	return App{
		Env:             "dev",
		HTTPPort:        "8081",
		LogLevel:        "info",
		LogPretty:       true,
		RateLimitPerMin: 120,
		SeedOnEmpty:     true,
		Database: Database{
			Host:            "localhost",
			Port:            5432,
			User:            "attentrack",
			Password:        "password",
			Name:            "attentrack",
			SSLMode:         "disable",
			ConnectionLimit: 10,
			ConnectTimeout:  10 * time.Second,
		},
		Local: Local{
			Backend:        "sqlite",
			Path:           "./data/attentrack-local.db",
			RedisAddr:      "localhost:6379",
			RedisKeyPrefix: "",
		},
	}
}

// Load returns defaults, overlaid by the YAML file at path (skipped when path
// is empty or missing) and then by environment variables.
func Load(path string) (App, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return App{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return App{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return App{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *App) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = boolEnv("LOG_PRETTY", cfg.LogPretty)
	cfg.RateLimitPerMin = intEnv("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	cfg.Strict = boolEnv("STORE_STRICT", cfg.Strict)
	cfg.SeedOnEmpty = boolEnv("SEED_ON_EMPTY", cfg.SeedOnEmpty)

	db := &cfg.Database
	db.Disabled = boolEnv("DB_DISABLED", db.Disabled)
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = intEnv("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Name = getEnv("DB_NAME", db.Name)
	db.SSLMode = getEnv("DB_SSLMODE", db.SSLMode)
	db.ConnectionLimit = intEnv("DB_CONNECTION_LIMIT", db.ConnectionLimit)
	db.ConnectTimeout = durationEnv("DB_CONNECT_TIMEOUT", db.ConnectTimeout)

	local := &cfg.Local
	local.Backend = getEnv("LOCAL_BACKEND", local.Backend)
	local.Path = getEnv("LOCAL_PATH", local.Path)
	local.RedisAddr = getEnv("REDIS_ADDR", local.RedisAddr)
	local.RedisKeyPrefix = getEnv("REDIS_KEY_PREFIX", local.RedisKeyPrefix)
}

// Validate checks the fields the stores depend on.
func (c App) Validate() error {
	switch c.Local.Backend {
	case "sqlite":
		if c.Local.Path == "" {
			return fmt.Errorf("local path is required for the sqlite backend")
		}
	case "redis":
		if c.Local.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown local backend %q", c.Local.Backend)
	}
	if c.Database.Disabled {
		return nil
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port %d", c.Database.Port)
	}
	if c.Database.ConnectionLimit <= 0 {
		return fmt.Errorf("connection limit must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			warnf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			warnf("invalid bool for %s, using fallback %v", key, fallback)
			return fallback
		}
		return b
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			warnf("invalid int for %s, using fallback %d", key, fallback)
			return fallback
		}
		return parsed
	}
	return fallback
}

func warnf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}
