// Package config loads bot settings from the environment, optionally seeded
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
)

// Config is the complete runtime configuration.
type Config struct {
	DiscordToken string   `env:"DISCORD_TOKEN"`
	AppID        string   `env:"APP_ID"`
	DevGuildID   string   `env:"DEV_GUILD_ID"`
	OwnerIDs     []string `env:"BOT_OWNER_ID" envSeparator:","`
	Prefix       string   `env:"PREFIX" envDefault:"!"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	StoragePath string `env:"STORAGE_PATH" envDefault:"data/cooldowns.db"`

	CooldownsEnabled bool          `env:"COOLDOWNS_ENABLED" envDefault:"true"`
	OwnersBypass     bool          `env:"COOLDOWNS_OWNERS_BYPASS" envDefault:"true"`
	CooldownMessage  string        `env:"COOLDOWNS_MESSAGE"`
	JanitorInterval  time.Duration `env:"COOLDOWNS_JANITOR_INTERVAL" envDefault:"1m"`

	RegisterCommands bool   `env:"REGISTER_COMMANDS" envDefault:"true"`
	CommandCacheDir  string `env:"COMMAND_CACHE_DIR" envDefault:"data/commands"`
	NotifyOwnerDM    bool   `env:"NOTIFY_OWNER_DM" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"LOG_FILE"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads .env when present and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the bot cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is not set"))
	}
	switch c.StoreDriver {
	case DriverSQLite, DriverJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.CooldownsEnabled && c.StoreDriver == DriverSQLite && c.StoragePath == "" {
		errs = append(errs, errors.New("STORAGE_PATH is required for the sqlite store"))
	}
	return errors.Join(errs...)
}
