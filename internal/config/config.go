// Package config loads configuration for the offline subsystem and the
// dineops CLI. Values come from an optional config file (TOML or YAML),
// DINEOPS_* environment variables, and built-in defaults, in that order of
// precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface. The retry ceiling is the single
// tunable the sync protocol itself depends on; everything else is plumbing.
type Config struct {
	// DBPath is the local durable store location.
	DBPath string `mapstructure:"db_path"`

	// BackendURL is the DineEase backend root.
	BackendURL string `mapstructure:"backend_url"`

	// RetryCeiling is the maximum failed replays per mutation.
	RetryCeiling int `mapstructure:"retry_ceiling"`

	// ProbeInterval is how often connectivity is probed.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// StatsInterval is how often aggregate counts are recomputed.
	StatsInterval time.Duration `mapstructure:"stats_interval"`

	// RequestTimeout bounds each backend request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// DashboardPort is where the status dashboard listens (0 disables it).
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile is where the serve daemon writes rotated logs
	// (empty logs to stderr).
	LogFile string `mapstructure:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:         ".dineease/offline.db",
		BackendURL:     "http://localhost:3000",
		RetryCeiling:   3,
		ProbeInterval:  5 * time.Second,
		StatsInterval:  10 * time.Second,
		RequestTimeout: 10 * time.Second,
		DashboardPort:  8080,
	}
}

// Load reads configuration from the given file path (optional; empty means
// defaults and environment only).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DINEOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url cannot be empty")
	}
	if c.RetryCeiling <= 0 {
		return fmt.Errorf("retry_ceiling must be positive (got %d)", c.RetryCeiling)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive (got %v)", c.ProbeInterval)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats_interval must be positive (got %v)", c.StatsInterval)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("backend_url", d.BackendURL)
	v.SetDefault("retry_ceiling", d.RetryCeiling)
	v.SetDefault("probe_interval", d.ProbeInterval)
	v.SetDefault("stats_interval", d.StatsInterval)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("dashboard_port", d.DashboardPort)
	v.SetDefault("log_file", d.LogFile)
}
