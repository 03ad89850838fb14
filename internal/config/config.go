// Package config loads the CLI/server configuration. Precedence, highest
// first: environment variables (SIGNALBUS_ prefix), .env files, the YAML
// config file, built-in defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/forgeline/signalbus/pkg/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g. SIGNALBUS_ADDR.
const EnvPrefix = "SIGNALBUS"

// Config holds the server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// History capacities per event category.
	HistorySize        int `yaml:"history_size"`
	CommandHistorySize int `yaml:"command_history_size"`
	ErrorHistorySize   int `yaml:"error_history_size"`

	// Dispatch pool sizing.
	WorkerCount int `yaml:"worker_count"`
	QueueSize   int `yaml:"queue_size"`

	// CleanupThreshold is the subscriber inactivity age before removal.
	CleanupThreshold time.Duration `yaml:"cleanup_threshold"`

	// WatchDir, when set, connects the file-watch document source to it.
	WatchDir string `yaml:"watch_dir"`

	// Logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Addr:               ":8080",
		HistorySize:        1000,
		CommandHistorySize: 100,
		ErrorHistorySize:   50,
		WorkerCount:        4,
		QueueSize:          256,
		CleanupThreshold:   time.Hour,
		LogLevel:           "info",
		LogFormat:          "auto",
	}
}

// Load builds the configuration. path names a YAML config file; empty means
// file loading is skipped. A missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	// .env files first, so Viper's env binding sees them.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewConfigError("file", "cannot read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigError("file", "cannot parse config file", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays SIGNALBUS_* environment variables.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	set := func(key string, apply func()) {
		if v.IsSet(key) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = v.GetString("addr") })
	set("history_size", func() { cfg.HistorySize = v.GetInt("history_size") })
	set("command_history_size", func() { cfg.CommandHistorySize = v.GetInt("command_history_size") })
	set("error_history_size", func() { cfg.ErrorHistorySize = v.GetInt("error_history_size") })
	set("worker_count", func() { cfg.WorkerCount = v.GetInt("worker_count") })
	set("queue_size", func() { cfg.QueueSize = v.GetInt("queue_size") })
	set("cleanup_threshold", func() { cfg.CleanupThreshold = v.GetDuration("cleanup_threshold") })
	set("watch_dir", func() { cfg.WatchDir = v.GetString("watch_dir") })
	set("log_level", func() { cfg.LogLevel = v.GetString("log_level") })
	set("log_format", func() { cfg.LogFormat = v.GetString("log_format") })
}

// Validate rejects configurations the broker cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.NewConfigError("addr", "listen address must not be empty", nil)
	}
	for name, n := range map[string]int{
		"history_size":         c.HistorySize,
		"command_history_size": c.CommandHistorySize,
		"error_history_size":   c.ErrorHistorySize,
		"worker_count":         c.WorkerCount,
		"queue_size":           c.QueueSize,
	} {
		if n <= 0 {
			return errors.NewConfigError(name, "must be positive", nil)
		}
	}
	if c.CleanupThreshold <= 0 {
		return errors.NewConfigError("cleanup_threshold", "must be positive", nil)
	}
	return nil
}
