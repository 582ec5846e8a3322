package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	BindAddr   string `env:"BIND_ADDR" envDefault:"127.0.0.1"`
	ServerPort string `env:"PORT" envDefault:"8080"`

	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	DatabasePath string `env:"DB_PATH" envDefault:"./abaquest.db"`
	DatabaseURL  string `env:"DATABASE_URL"`

	// StorageBackend selects where roster and progress documents live: "sql" or "redis".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"sql"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`

	TokenSecret        string        `env:"TOKEN_SECRET"`
	SessionDuration    time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	OperatorPinHash    string        `env:"OPERATOR_PIN_HASH"`

	CatalogPath   string `env:"CATALOG_PATH"`
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`
	LogMode       string `env:"LOG_MODE" envDefault:"dev"`
	SeedRoster    bool   `env:"SEED_ROSTER" envDefault:"true"`
}

// Load reads an optional .env file and then parses the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from environment variables only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the struct tags cannot express
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "sqlite-pure", "":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for database type %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	switch strings.ToLower(c.StorageBackend) {
	case "sql", "redis":
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	if c.SessionDuration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive")
	}
	return nil
}

// ListenAddr joins the bind address and port
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, c.ServerPort)
}
