// Package metrics exposes custodian's Prometheus metrics.
//
// A Collector is handed to the purge engine as its retention.Recorder and to
// the trigger handler for response counts. Handler serves the collector's
// registry, normally at /metrics.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	purger.SetRecorder(collector)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
