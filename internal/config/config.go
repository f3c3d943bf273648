// Package config defines service configuration structures and loading hooks.
package config

import (
	"time"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RequestTimeout bounds each API call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// StorageDriver is one of memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`

	SQLitePath string `koanf:"sqlite_path"`

	PostgresURL      string `koanf:"postgres_url"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`

	// RedisAddr enables the progress cache when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// ProgressCacheTTL bounds how long cached progress may lag a write.
	ProgressCacheTTL time.Duration `koanf:"progress_cache_ttl"`

	// RosterFile is a YAML roster; empty uses the built-in sample.
	RosterFile string `koanf:"roster_file"`

	// ConcealForbidden reports refused reads of existing assessments as
	// not found.
	ConcealForbidden bool `koanf:"conceal_forbidden"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":8080",
		RequestTimeout:   10 * time.Second,
		StorageDriver:    DriverMemory,
		SQLitePath:       "pitchside.db",
		PostgresMaxConns: 10,
		ProgressCacheTTL: 5 * time.Minute,
	}
}

// Validate checks that the chosen driver is configured.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	case c.RequestTimeout < 0:
		return invalid("request_timeout must not be negative")
	case c.ProgressCacheTTL <= 0:
		return invalid("progress_cache_ttl must be positive")
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return invalid("postgres_url is required for the postgres driver")
		}
		if c.PostgresMaxConns < 1 {
			return invalid("postgres_max_conns must be at least 1")
		}
	default:
		return invalid("unknown storage_driver %q", c.StorageDriver)
	}
	return nil
}
