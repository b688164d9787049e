// Package config loads the service configuration from a YAML file and
// LEDGER_* environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// CurrencySeed registers a currency at startup.
type CurrencySeed struct {
	Name     string `mapstructure:"name"`
	Unit     string `mapstructure:"unit"`
	Decimals uint8  `mapstructure:"decimals"`
}

// TokenTypeSeed registers a token type at startup.
type TokenTypeSeed struct {
	Name           string `mapstructure:"name"`
	Unit           string `mapstructure:"unit"`
	SettlementKind string `mapstructure:"settlement_kind"`
}

// Config is the full service configuration.
type Config struct {
	LogLevel    string          `mapstructure:"log_level"`
	HTTPAddr    string          `mapstructure:"http_addr"`
	Admins      []string        `mapstructure:"admins"` // account uuids with fee-schedule rights
	SealOnStart bool            `mapstructure:"seal_on_start"`
	Currencies  []CurrencySeed  `mapstructure:"currencies"`
	TokenTypes  []TokenTypeSeed `mapstructure:"token_types"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("seal_on_start", true)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	for _, a := range c.Admins {
		if _, err := uuid.Parse(a); err != nil {
			return fmt.Errorf("admin %q is not a uuid: %w", a, err)
		}
	}
	return nil
}

// AdminIDs parses the configured admin accounts.
func (c *Config) AdminIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(c.Admins))
	for _, a := range c.Admins {
		if id, err := uuid.Parse(a); err == nil {
			out = append(out, id)
		}
	}
	return out
}
