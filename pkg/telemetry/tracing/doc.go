// Package tracing sets up OpenTelemetry for custodian.
//
// The retention engine opens spans on the global tracer
// ("retention.fleet" around a fleet run, "retention.purge_org" per tenant).
// New installs an OTLP/gRPC exporter behind that global tracer when tracing
// is enabled, and W3C Trace Context propagation so the scheduler's call and
// the server-side run join one trace.
package tracing
