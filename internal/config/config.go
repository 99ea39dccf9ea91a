// Package config loads landedcost's runtime configuration via viper,
// mirroring the load-then-validate shape of elchinoo-stormdb's
// internal/config package.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration for the costcore binary.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`

	// OrderLabel is the configured, case-insensitive label the Sales
	// Normalizer matches sales_raw.type against (§9: "implementers must
	// expose the label as config rather than hardcode").
	OrderLabel string `mapstructure:"order_label"`

	// ReportingTimezone names the IANA zone used to compute month
	// boundaries for ym selection (§6). Defaults to UTC.
	ReportingTimezone string `mapstructure:"reporting_timezone"`

	// AllowNegativeLots enables the FIFO Engine's synthetic "pending" lot
	// for shortfalls instead of leaving demand unallocated (§4.3).
	AllowNegativeLots bool `mapstructure:"allow_negative_lots"`

	// WriterTimeout bounds how long a mutating command waits to acquire
	// the per-tenant writer lock before aborting with AbortedByTimeout (§5).
	WriterTimeout time.Duration `mapstructure:"writer_timeout"`

	// NonBlockingWriter selects §5's other permitted writer-lock policy:
	// fail fast with BusyWriter instead of blocking (WriterTimeout is
	// unused in this mode). Off by default, since most operators would
	// rather wait out a short overlap than have a command bounce.
	NonBlockingWriter bool `mapstructure:"non_blocking_writer"`
}

// DatabaseConfig configures the pgx connection pool.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads configFile (if non-empty) via viper, overlays environment
// variables, and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LANDEDCOST")
	v.AutomaticEnv()

	v.SetDefault("order_label", "order")
	v.SetDefault("reporting_timezone", "UTC")
	v.SetDefault("allow_negative_lots", false)
	v.SetDefault("writer_timeout", "10m")
	v.SetDefault("non_blocking_writer", false)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.OrderLabel == "" {
		return fmt.Errorf("order_label must not be empty")
	}
	if _, err := time.LoadLocation(cfg.ReportingTimezone); err != nil {
		return fmt.Errorf("invalid reporting_timezone %q: %w", cfg.ReportingTimezone, err)
	}
	if cfg.WriterTimeout <= 0 {
		return fmt.Errorf("writer_timeout must be positive, got: %s", cfg.WriterTimeout)
	}
	return nil
}
