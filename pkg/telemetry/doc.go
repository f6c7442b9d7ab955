// Package telemetry wires structured logging, Prometheus metrics and
// OpenTelemetry tracing for the throttle tool.
//
// # Components
//
//   - logging: log/slog wrapper with context fields
//   - metrics: Prometheus registry, exposition server and health probes
//   - tracing: OpenTelemetry tracer with OTLP export
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, version, os.Stderr)
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	registry := throttle.NewRegistry(tel.ThrottleOptions()...)
package telemetry
