package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fizzworks/fountd/internal/controller"
	"github.com/fizzworks/fountd/internal/liveness"
	"github.com/fizzworks/fountd/internal/logger"
)

// Liveness strategy selection for [controller] mode.
const (
	ModePoll      = "poll"
	ModeHeartbeat = "heartbeat"
)

// Config is the top-level TOML structure for fountd.
type Config struct {
	Server     ServerConfig     `toml:"server" mapstructure:"server"`
	Controller ControllerConfig `toml:"controller" mapstructure:"controller"`
	Store      StoreConfig      `toml:"store" mapstructure:"store"`
	Audit      AuditConfig      `toml:"audit" mapstructure:"audit"`
	Metrics    MetricsConfig    `toml:"metrics" mapstructure:"metrics"`
	Log        logger.Config    `toml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type ControllerConfig struct {
	// Address is the controller host or host:port on the appliance network.
	Address string `toml:"address" mapstructure:"address"`
	// Mode selects the liveness strategy: "poll" (active probing, the
	// default) or "heartbeat" (the controller calls in).
	Mode           string        `toml:"mode" mapstructure:"mode"`
	PollInterval   time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	StaleAfter     time.Duration `toml:"stale_after" mapstructure:"stale_after"`
	CommandTimeout time.Duration `toml:"command_timeout" mapstructure:"command_timeout"`
}

type StoreConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type AuditConfig struct {
	// DSN selects an optional analytics export sink; empty disables auditing.
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

// Default returns the built-in configuration: poll-mode liveness with the
// design-value timings and a local SQLite dispense log.
func Default() Config {
	return Config{
		Server: ServerConfig{Listen: ":8080"},
		Controller: ControllerConfig{
			Mode:           ModePoll,
			PollInterval:   liveness.DefaultPollInterval,
			StaleAfter:     liveness.DefaultStaleAfter,
			CommandTimeout: controller.DefaultTimeout,
		},
		Store: StoreConfig{DSN: "history.db"},
	}
}

// Load reads a TOML config file and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Controller.Address) == "" {
		return fmt.Errorf("controller.address is required")
	}
	switch c.Controller.Mode {
	case ModePoll, ModeHeartbeat:
	default:
		return fmt.Errorf("controller.mode must be %q or %q, got %q", ModePoll, ModeHeartbeat, c.Controller.Mode)
	}
	if c.Controller.PollInterval < 0 || c.Controller.StaleAfter < 0 || c.Controller.CommandTimeout < 0 {
		return fmt.Errorf("controller intervals must not be negative")
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("store.dsn is required")
	}
	return nil
}
