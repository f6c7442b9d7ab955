// Package tracing provides OpenTelemetry tracing for the throttle tool.
//
// # Overview
//
// New builds a Tracer from configuration. When tracing is disabled it hands
// out a noop tracer, so callers can always pass Tracer.Tracer() to
// throttle.WithTracer without checking the configuration.
//
// When enabled, spans are exported over OTLP gRPC:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    otlp:
//	      insecure: true
//
// # Spans
//
// Two span kinds are produced. The limiter opens throttle.admit around every
// admission on an engaged class, and the resource connection opens
// resource.request around each HTTP call. Outgoing requests carry W3C trace
// context headers injected by Inject.
//
// # Sampling
//
// Samplers are wrapped in ParentBased so that a span follows the decision of
// its parent when there is one.
package tracing
