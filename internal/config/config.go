// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RebuildIntervalMS is the snapshot rebuild cadence. Zero disables the
	// background builder; rebuilds then happen only on demand.
	RebuildIntervalMS int `koanf:"rebuild_interval_ms"`

	// QueueSize bounds the bulk ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of bulk ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// IdempotencySize caps how many idempotency keys are remembered.
	IdempotencySize int `koanf:"idempotency_size"`

	// MaxWindow caps the number of ranks one read may return.
	MaxWindow int `koanf:"max_window"`

	// MaxBatchSize caps the number of updates in one batch request.
	MaxBatchSize int `koanf:"max_batch_size"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		RebuildIntervalMS: 100,
		QueueSize:         100_000,
		WorkerCount:       runtime.NumCPU() * 2,
		IdempotencySize:   50_000,
		MaxWindow:         1000,
		MaxBatchSize:      1000,
		TracingEndpoint:   "localhost:4318",
		TracingSampleRate: 1.0,
	}
}

// RebuildInterval returns the rebuild cadence as a duration.
func (c *Config) RebuildInterval() time.Duration {
	return time.Duration(c.RebuildIntervalMS) * time.Millisecond
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !oneOf(c.LogLevel, "debug", "info", "warn", "error"):
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	case !oneOf(c.LogFormat, "text", "json"):
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.RebuildIntervalMS < 0:
		return fmt.Errorf("%w: rebuild_interval_ms must be >= 0", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be > 0", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be > 0", ErrInvalidConfig)
	case c.IdempotencySize < 0:
		return fmt.Errorf("%w: idempotency_size must be >= 0", ErrInvalidConfig)
	case c.MaxWindow <= 0:
		return fmt.Errorf("%w: max_window must be > 0", ErrInvalidConfig)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be > 0", ErrInvalidConfig)
	case c.TracingSampleRate < 0 || c.TracingSampleRate > 1:
		return fmt.Errorf("%w: tracing_sample_rate must be within [0,1]", ErrInvalidConfig)
	case c.TracingEnabled && c.TracingEndpoint == "":
		return fmt.Errorf("%w: tracing_endpoint required when tracing is enabled", ErrInvalidConfig)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
