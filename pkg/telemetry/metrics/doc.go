// Package metrics serves Prometheus metrics and health probes for the
// throttle tool.
//
// Admission metrics themselves live in package throttle and are registered
// on the registry returned by NewRegistry. Server exposes that registry
// over HTTP together with liveness and readiness endpoints:
//
//	GET /metrics   Prometheus exposition (OpenMetrics when negotiated)
//	GET /healthz   liveness, always 200 while the process runs
//	GET /readyz    readiness, 503 when any registered check fails
//
// Readiness checks are plain functions registered with RegisterCheck, for
// example a ping of the journal database.
package metrics
