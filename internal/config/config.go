// Package config provides YAML-based configuration loading for the
// intercom console.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level console configuration, loaded from config.yaml.
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Auth      AuthConfig          `yaml:"auth"`
	Call      CallConfig          `yaml:"call"`
	Database  DatabaseConfig      `yaml:"database"`
	Dashboard DashboardConfig     `yaml:"dashboard"`
	Resync    ResyncConfig        `yaml:"resync"`
	Stations  map[string][]string `yaml:"stations"`
}

// ServerConfig holds the signaling server connection settings.
type ServerConfig struct {
	URL                  string `yaml:"url"`
	Position             string `yaml:"position"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
}

// AuthConfig points at the stored session token.
type AuthConfig struct {
	TokenFile string `yaml:"token_file"`
}

// CallConfig tunes the call session.
type CallConfig struct {
	AutoHangupSeconds int      `yaml:"auto_hangup_seconds"`
	DefaultStation    string   `yaml:"default_station"`
	Ignored           []string `yaml:"ignored"`
}

// DatabaseConfig selects the call history backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite (default) or mysql
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // mysql
}

// DashboardConfig holds the local state dashboard settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// ResyncConfig schedules periodic full roster refreshes.
type ResyncConfig struct {
	Cron string `yaml:"cron"` // 5-field cron expression; empty disables
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.MaxReconnectAttempts == 0 {
		c.Server.MaxReconnectAttempts = 5
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "intercom.db"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8420
	}
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = "token"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.URL == "" {
		errs = append(errs, "server.url is required")
	} else if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		errs = append(errs, "server.url must be a ws:// or wss:// URL")
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the mysql driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Call.AutoHangupSeconds < 0 {
		errs = append(errs, "call.auto_hangup_seconds must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StationLabels returns the configured label lines for a station id, or
// nil when none are configured.
func (c *Config) StationLabels(id string) []string {
	return c.Stations[id]
}
