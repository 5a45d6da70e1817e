// Package config loads the CLI configuration from cmpkit.yaml, CMPKIT_*
// environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Engine names.
const (
	EngineZero   = "zero"
	EngineMarkup = "markup"
)

// Config is the CLI configuration.
type Config struct {
	Engine   string       `mapstructure:"engine"`
	LogLevel string       `mapstructure:"log_level"`
	State    StateConfig  `mapstructure:"state"`
	Server   ServerConfig `mapstructure:"server"`
}

// StateConfig configures state snapshots of the markup engine.
type StateConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Key       string `mapstructure:"key"`
	Sensitive bool   `mapstructure:"sensitive"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// New creates a viper instance with defaults, environment binding and, when
// present, the config file. An explicit file must exist.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("engine", EngineZero)
	v.SetDefault("log_level", "info")
	v.SetDefault("state.enabled", false)
	v.SetDefault("state.key", "")
	v.SetDefault("state.sensitive", false)
	v.SetDefault("server.addr", "localhost:8080")

	v.SetEnvPrefix("CMPKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		return v, nil
	}

	v.SetConfigName("cmpkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks a configuration.
func Validate(cfg *Config) error {
	switch cfg.Engine {
	case EngineZero, EngineMarkup:
	default:
		return fmt.Errorf("unknown engine %q (want %s or %s)", cfg.Engine, EngineZero, EngineMarkup)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	if cfg.State.Enabled {
		if cfg.Engine != EngineMarkup {
			return fmt.Errorf("state snapshots need the %s engine", EngineMarkup)
		}
		if cfg.State.Key == "" {
			return errors.New("state.key is required when state snapshots are enabled")
		}
	}
	return nil
}
