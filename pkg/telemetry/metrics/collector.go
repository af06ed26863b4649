package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/retention"
)

// Row modes reported on the rows counter.
const (
	modeDeleted = "deleted"
	modeDryRun  = "dry_run"
)

// Collector owns the custodian Prometheus registry. It implements
// retention.Recorder so the purge engine can report into it directly.
//
// Metrics (namespace from config, "custodian" by default):
//   - retention_runs_total{outcome}: tenant runs by outcome
//   - retention_run_duration_seconds{outcome}: tenant run duration
//   - retention_rows_total{collection,mode}: rows deleted or counted
//   - retention_fleet_tenants{result}: tenants processed by the last fleet run
//   - retention_fleet_last_run_timestamp_seconds: end of the last fleet run
//   - trigger_requests_total{route,code}: trigger endpoint responses
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	rowsTotal    *prometheus.CounterVec
	fleetTenants *prometheus.GaugeVec
	fleetLastRun prometheus.Gauge
	triggerTotal *prometheus.CounterVec

	now func() time.Time
}

var _ retention.Recorder = (*Collector)(nil)

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one with the Go and process collectors.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		now:      time.Now,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "runs_total",
				Help:      "Tenant retention runs by outcome",
			},
			[]string{"outcome"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "run_duration_seconds",
				Help:      "Duration of one tenant retention run in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"outcome"},
		),

		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "rows_total",
				Help:      "Rows deleted, or counted in dry runs, by collection",
			},
			[]string{"collection", "mode"},
		),

		fleetTenants: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "fleet_tenants",
				Help:      "Tenants processed by the last fleet run",
			},
			[]string{"result"},
		),

		fleetLastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "fleet_last_run_timestamp_seconds",
				Help:      "Unix time at which the last fleet run finished",
			},
		),

		triggerTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "trigger",
				Name:      "requests_total",
				Help:      "Trigger endpoint responses by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.rowsTotal,
		c.fleetTenants,
		c.fleetLastRun,
		c.triggerTotal,
	)

	return c
}

// Registry returns the registry the collector registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRun implements retention.Recorder.
func (c *Collector) RecordRun(outcome string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordRows implements retention.Recorder.
func (c *Collector) RecordRows(table retention.Table, n int64, dryRun bool) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	mode := modeDeleted
	if dryRun {
		mode = modeDryRun
	}
	c.rowsTotal.WithLabelValues(string(table), mode).Add(float64(n))
}

// RecordFleet implements retention.Recorder.
func (c *Collector) RecordFleet(tenants, failed int) {
	if !c.config.Enabled {
		return
	}
	c.fleetTenants.WithLabelValues("ok").Set(float64(tenants - failed))
	c.fleetTenants.WithLabelValues("failed").Set(float64(failed))
	c.fleetLastRun.Set(float64(c.now().Unix()))
}

// RecordTrigger counts one trigger response.
func (c *Collector) RecordTrigger(route string, code int) {
	if !c.config.Enabled {
		return
	}
	c.triggerTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
