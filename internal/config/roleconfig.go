package config

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/loykin/dpd/internal/logger"
)

// BusConfig holds the NATS server URL every role connects to. The
// updates_subject, stats_subject and settle_seconds keys are decoded but
// not read by any role: the bus package uses the fixed subjects
// "updates.<node>" and "dpd.stats", and the master's settle interval is the
// master.SettleInterval constant.
type BusConfig struct {
	URL             string `mapstructure:"url"`
	UpdatesSubject  string `mapstructure:"updates_subject"`
	StatsSubject    string `mapstructure:"stats_subject"`
	SettleSeconds   int    `mapstructure:"settle_seconds"`
}

// LogConfig mirrors the teacher's own role-level log block (dir + rotation
// limits), reused verbatim as the ambient logging section of each role's
// startup configuration.
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig optionally exposes a Prometheus /metrics endpoint. The core
// has no query API (spec.md Non-goals), so this is the only HTTP surface a
// role carries.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// MasterConfig is dpd-masterd's startup configuration: which local config
// file to watch, and the bus to publish updates / drain stats on.
type MasterConfig struct {
	ConfigFile string        `mapstructure:"config_file"`
	Bus        BusConfig     `mapstructure:"bus"`
	Log        LogConfig     `mapstructure:"log"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
}

// ClientConfig is dpd-clientd's startup configuration: its node identity,
// the local config file it materializes updates into, and the bus to
// subscribe on.
type ClientConfig struct {
	NodeName   string        `mapstructure:"node_name"`
	ConfigFile string        `mapstructure:"config_file"`
	Bus        BusConfig     `mapstructure:"bus"`
	Log        LogConfig     `mapstructure:"log"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
}

// WorkerConfig is dpd-workerd's startup configuration: the local config
// file the supervisor watches for its own process list.
type WorkerConfig struct {
	ConfigFile   string        `mapstructure:"config_file"`
	TickInterval float64       `mapstructure:"tick_interval_seconds"`
	Log          LogConfig     `mapstructure:"log"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
}

// LoadRole parses path (any format viper supports: yaml/toml/json) into out.
// Grounded on provisr's internal/config/config.go parseConfigFile, reused
// verbatim for role startup configuration since spec.md §1 explicitly
// places "the configuration file format beyond what the differ consumes"
// out of the core's scope — this is exactly that out-of-scope surface.
func LoadRole(path string, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read role config: %w", err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal role config: %w", err)
	}
	return nil
}

// SlogLevel maps the role config's textual log level to a slog.Level,
// defaulting to Info on an unrecognized or empty value.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds the ambient slog.Logger for a role from its LogConfig.
func (c LogConfig) Logger(role string) *slog.Logger {
	return logger.New(role, logger.Config{
		Dir:        c.Dir,
		Level:      c.SlogLevel(),
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	})
}
