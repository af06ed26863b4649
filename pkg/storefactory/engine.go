package storefactory

import (
	"maps"

	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/tenant"
)

// Engine pairs a purger with the fleet driver that calls it.
type Engine struct {
	Purger *retention.Purger
	Fleet  *retention.Fleet
}

// NewEngine wires the retention engine over store from one configuration
// snapshot. recorder may be nil.
func NewEngine(cfg *config.Config, store Store, recorder retention.Recorder) *Engine {
	purger := retention.NewPurger(store, NewLoader(cfg, store), store, &retention.Config{
		BatchSize:       cfg.Retention.BatchSize,
		PageSize:        cfg.Retention.PageSize,
		DeleteChunkSize: cfg.Retention.DeleteChunkSize,
		OrgPageSize:     cfg.Retention.OrgPageSize,
	})
	purger.SetRecorder(recorder)

	fleet := retention.NewFleet(store, purger, cfg.Retention.OrgPageSize)
	fleet.SetRecorder(recorder)

	return &Engine{Purger: purger, Fleet: fleet}
}

// NewLoader creates a settings loader whose defaults come from cfg.Tenant.
func NewLoader(cfg *config.Config, reader tenant.SettingsReader) *tenant.Loader {
	return tenant.NewLoader(reader, &tenant.Settings{
		ModelEnabled:  maps.Clone(cfg.Tenant.ModelEnabled),
		RetentionDays: cfg.Tenant.DefaultRetentionDays,
	})
}
