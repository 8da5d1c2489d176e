// Package daemon holds the backend process configuration. Settings come from
// a TOML file with environment variable overrides on top, so container
// deployments can run without any file at all.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the full backend configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Storage  StorageConfig  `toml:"storage"`
	Sessions SessionsConfig `toml:"sessions"`
	Pricing  PricingConfig  `toml:"pricing"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StorageConfig selects the authoritative store.
type StorageConfig struct {
	Driver      string `toml:"driver"` // "sqlite" or "postgres"
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// SessionsConfig selects where session tokens live and how long they last.
type SessionsConfig struct {
	Backend string      `toml:"backend"` // "sqlite" or "redis"
	TTL     string      `toml:"ttl"`     // Go duration string
	Redis   RedisConfig `toml:"redis"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// PricingConfig names the price policy the aggregator uses.
// Only "current" is implemented: debts are valued at the price in effect
// when the report is computed, not when the entry was written.
type PricingConfig struct {
	Policy string `toml:"policy"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		API: APIConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Metrics: true,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(home, ".deudat", "deudat.db"),
		},
		Sessions: SessionsConfig{
			Backend: "sqlite",
			TTL:     "720h", // 30 days, boards are long-lived
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Pricing: PricingConfig{
			Policy: "current",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".deudat", "config.toml")
}

// Load reads the config file at path, layering env overrides on top of
// defaults. A missing file is not an error. A .env file in the working
// directory is picked up first.
func Load(path string) (Config, error) {
	// Ignore a missing .env, it is a dev convenience only.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers DEUDAT_* environment overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DEUDAT_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DEUDAT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}
	if v := os.Getenv("DEUDAT_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("DEUDAT_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DEUDAT_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("DEUDAT_SESSIONS_BACKEND"); v != "" {
		cfg.Sessions.Backend = v
	}
	if v := os.Getenv("DEUDAT_SESSIONS_TTL"); v != "" {
		cfg.Sessions.TTL = v
	}
	if v := os.Getenv("DEUDAT_REDIS_ADDR"); v != "" {
		cfg.Sessions.Redis.Addr = v
	}
	if v := os.Getenv("DEUDAT_REDIS_PASSWORD"); v != "" {
		cfg.Sessions.Redis.Password = v
	}
}

// Validate checks the enum-valued settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required with the postgres driver")
	}
	switch c.Sessions.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("sessions.backend must be sqlite or redis, got %q", c.Sessions.Backend)
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	if c.Pricing.Policy != "current" {
		return fmt.Errorf("pricing.policy %q is not implemented", c.Pricing.Policy)
	}
	return nil
}

// SessionTTL parses the configured token lifetime.
func (c Config) SessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Sessions.TTL)
	if err != nil {
		return 0, fmt.Errorf("sessions.ttl: %w", err)
	}
	return d, nil
}

// Addr returns the host:port the API listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
