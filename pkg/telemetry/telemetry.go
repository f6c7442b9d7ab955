package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/metrics"
	"mercator-hq/throttle/pkg/telemetry/tracing"
	"mercator-hq/throttle/pkg/throttle"
)

// Telemetry bundles the logger, metrics and tracer built from one
// configuration.
type Telemetry struct {
	config   *config.TelemetryConfig
	logger   *logging.Logger
	registry *prometheus.Registry
	server   *metrics.Server
	tracer   *tracing.Tracer
	throttle *throttle.Metrics
}

// New builds telemetry from cfg. Logs go to w, or stderr when w is nil.
// The metrics server is created but not started.
func New(cfg *config.TelemetryConfig, version string, w io.Writer) (*Telemetry, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Writer:    w,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	registry := metrics.NewRegistry()

	return &Telemetry{
		config:   cfg,
		logger:   logger,
		registry: registry,
		server:   metrics.NewServer(&cfg.Metrics, registry, logger.Slog()),
		tracer:   tracer,
		throttle: throttle.NewMetrics(registry),
	}, nil
}

// Logger returns the structured logger.
func (t *Telemetry) Logger() *logging.Logger {
	return t.logger
}

// Registry returns the Prometheus registry.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Server returns the metrics server.
func (t *Telemetry) Server() *metrics.Server {
	return t.server
}

// Tracer returns the tracer.
func (t *Telemetry) Tracer() *tracing.Tracer {
	return t.tracer
}

// ThrottleOptions returns the limiter options that route logs, metrics
// and spans through this telemetry.
func (t *Telemetry) ThrottleOptions() []throttle.Option {
	return []throttle.Option{
		throttle.WithLogger(t.logger.Slog()),
		throttle.WithMetrics(t.throttle),
		throttle.WithTracer(t.tracer.Tracer()),
	}
}

// Start starts the metrics server when metrics are enabled.
func (t *Telemetry) Start() error {
	if !t.config.Metrics.Enabled {
		return nil
	}
	return t.server.Start()
}

// Shutdown stops the metrics server and flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.server.Shutdown(ctx),
		t.tracer.Shutdown(ctx),
	)
}
