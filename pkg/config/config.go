package config

import (
	"time"

	"mercator-hq/throttle/pkg/throttle"
)

// Config is the root configuration structure.
type Config struct {
	// Telemetry contains observability configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Journal contains admission journal configuration.
	Journal JournalConfig `yaml:"journal"`

	// Report contains periodic report configuration.
	Report ReportConfig `yaml:"report"`

	// Classes lists the throttled resource classes in definition order.
	// A class may only extend a class declared before it.
	Classes []ClassConfig `yaml:"classes"`
}

// TelemetryConfig contains logging, metrics and tracing configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address of the metrics HTTP server.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether admission spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "throttle"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// JournalConfig contains configuration for the sqlite admission journal.
type JournalConfig struct {
	// Enabled controls whether admissions are journaled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the sqlite database file.
	// Default: "throttle.db"
	Path string `yaml:"path"`

	// Retention is how long journal entries are kept before the report
	// scheduler prunes them.
	// Default: 24h
	Retention time.Duration `yaml:"retention"`
}

// ReportConfig contains configuration for the periodic class report.
type ReportConfig struct {
	// Enabled controls whether the report scheduler runs.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor such as "@every 1m".
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`
}

// ClassConfig declares one throttled resource class.
type ClassConfig struct {
	// Name identifies the class. Names are unique.
	Name string `yaml:"name"`

	// Extends names the parent class. Empty for top-level classes.
	Extends string `yaml:"extends"`

	// Site is the base URL of the remote service. Required for resource
	// roots and rejected for classes that reuse a parent's connection.
	Site string `yaml:"site"`

	// Path is the collection path requested by FindAll.
	Path string `yaml:"path"`

	// ResourceRoot gives a derived class its own connection.
	ResourceRoot bool `yaml:"resource_root"`

	// Throttle holds the limiter options (window_duration, request_limit,
	// retry_delay). A nil block inherits the parent's window.
	Throttle map[string]any `yaml:"throttle"`
}

// IsRoot reports whether the class owns its own connection.
func (c ClassConfig) IsRoot() bool {
	return c.Extends == "" || c.ResourceRoot
}

// Options returns the throttle block as limiter options, or nil if the
// class does not configure its own window.
func (c ClassConfig) Options() throttle.Options {
	if c.Throttle == nil {
		return nil
	}
	return throttle.Options(c.Throttle)
}

// Class returns the class named name.
func (c *Config) Class(name string) (ClassConfig, bool) {
	for _, cc := range c.Classes {
		if cc.Name == name {
			return cc, true
		}
	}
	return ClassConfig{}, false
}
