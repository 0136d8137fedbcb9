package sitewatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/sitewatch/config"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	settings config.Settings
	logger   *slog.Logger
	registry prometheus.Registerer
}

// Option is a function that configures a [Monitor] during construction.
//
// Options return an error if validation fails. Cross-field validation is
// done by [New] once all options have been applied.
type Option func(*monitorConfig) error

// WithSettings replaces all settings at once. Later options still apply.
func WithSettings(s config.Settings) Option {
	return func(cfg *monitorConfig) error {
		cfg.settings = s
		return nil
	}
}

// WithConfigPath sets the website list file. Defaults to web_config.json.
func WithConfigPath(path string) Option {
	return func(cfg *monitorConfig) error {
		if path == "" {
			return errors.New("config path cannot be empty")
		}
		cfg.settings.ConfigPath = path
		return nil
	}
}

// WithStorePath sets the status history file. Defaults to website_data.json.
func WithStorePath(path string) Option {
	return func(cfg *monitorConfig) error {
		if path == "" {
			return errors.New("store path cannot be empty")
		}
		cfg.settings.StorePath = path
		return nil
	}
}

// WithTimeout sets the connect and read timeout for each probe.
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.settings.Timeout = d
		return nil
	}
}

// WithInterval sets the default period between live cycles.
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.settings.Interval = d
		return nil
	}
}

// WithPageSize sets the number of records per history page. Defaults to 10.
func WithPageSize(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("page size must be positive")
		}
		cfg.settings.PageSize = n
		return nil
	}
}

// WithConcurrency sets how many URLs are probed in parallel within a cycle.
// Defaults to 1 (sequential). Records are stored in URL order regardless.
func WithConcurrency(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("concurrency must be positive")
		}
		cfg.settings.Concurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMetrics registers probe and cycle collectors with reg.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m, err := sitewatch.New(sitewatch.WithMetrics(reg))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *monitorConfig) error {
		if reg == nil {
			return errors.New("metrics registerer cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
