// Package telemetry groups custodian's observability packages.
//
//   - logging: slog setup with secret masking and request ids
//   - metrics: Prometheus collector for retention runs and the trigger
//   - tracing: OpenTelemetry provider and W3C propagation
//   - health: liveness and readiness probes
package telemetry
