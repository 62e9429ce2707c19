package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends accepted by STORAGE / -storage.
const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMongo    = "mongo"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	Storage string `env:"STORAGE" envDefault:"in-memory"`

	DatabaseURL       string `env:"DATABASE_URL"`
	SQLitePath        string `env:"SQLITE_PATH" envDefault:"blogsphere.db"`
	MongoURI          string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB           string `env:"MONGO_DB" envDefault:"blogsphere"`
	MongoTransactions bool   `env:"MONGO_TRANSACTIONS" envDefault:"true"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	// RedisAddr enables cross-instance comment events when set.
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"blogsphere.comments"`

	LogMode     string   `env:"LOG_MODE" envDefault:"development"`
	Seed        bool     `env:"SEED" envDefault:"false"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageInMemory, StorageSQLite, StorageMongo:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}
