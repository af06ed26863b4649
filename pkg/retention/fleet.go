package retention

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrgPurger runs the retention policy for a single tenant.
type OrgPurger interface {
	PurgeOrgOnce(ctx context.Context, orgID string, actorID *string, opts Options) (*Summary, error)
}

// OrgLister pages through the tenant registry.
type OrgLister interface {
	ListOrgs(ctx context.Context, after *Cursor, limit int) ([]RowRef, error)
}

// Fleet runs the retention policy over every tenant, one after another.
type Fleet struct {
	orgs     OrgLister
	purger   OrgPurger
	pageSize int
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// NewFleet creates a fleet driver. pageSize is the number of tenants read per
// registry query; 0 uses the default.
func NewFleet(orgs OrgLister, purger OrgPurger, pageSize int) *Fleet {
	if pageSize <= 0 {
		pageSize = DefaultConfig().OrgPageSize
	}
	return &Fleet{
		orgs:     orgs,
		purger:   purger,
		pageSize: pageSize,
		logger:   slog.Default().With("component", "retention.fleet"),
		recorder: noopRecorder{},
		tracer:   otel.Tracer(instrumentationName),
	}
}

// SetRecorder installs a metrics recorder.
func (f *Fleet) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	f.recorder = r
}

// ListOrgIDs returns every tenant id in creation order.
func (f *Fleet) ListOrgIDs(ctx context.Context) ([]string, error) {
	if f.orgs == nil {
		return nil, ErrNoStore
	}

	var (
		ids    []string
		cursor *Cursor
	)
	for {
		page, err := f.orgs.ListOrgs(ctx, cursor, f.pageSize)
		if err != nil {
			return nil, err
		}
		for _, org := range page {
			ids = append(ids, org.ID)
		}
		if len(page) < f.pageSize {
			return ids, nil
		}
		cursor = page[len(page)-1].Cursor()
	}
}

// Run purges every tenant with a nil actor. A tenant whose run fails is
// recorded with its error message and the loop moves on. The returned error
// is non-nil only when the tenant list cannot be read or ctx is cancelled; in
// the latter case the results gathered so far are returned with it.
func (f *Fleet) Run(ctx context.Context, opts Options) (Results, error) {
	ctx, span := f.tracer.Start(ctx, "retention.fleet",
		trace.WithAttributes(attribute.Bool("retention.dry_run", opts.DryRun)),
	)
	defer span.End()

	ids, err := f.ListOrgIDs(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	f.logger.Info("starting fleet retention run",
		"tenants", len(ids),
		"dry_run", opts.DryRun,
	)

	results := make(Results, len(ids))
	for _, orgID := range ids {
		if err := ctx.Err(); err != nil {
			f.logger.Warn("fleet retention run interrupted",
				"completed", len(results),
				"tenants", len(ids),
				"error", err,
			)
			f.recorder.RecordFleet(len(results), results.Failed())
			span.SetStatus(codes.Error, err.Error())
			return results, err
		}

		summary, err := f.purger.PurgeOrgOnce(ctx, orgID, nil, opts)
		if err != nil {
			results[orgID] = Result{Error: err.Error()}
			continue
		}
		results[orgID] = Result{Summary: summary}
	}

	failed := results.Failed()
	f.recorder.RecordFleet(len(results), failed)
	span.SetAttributes(
		attribute.Int("retention.tenants", len(results)),
		attribute.Int("retention.failed", failed),
	)

	f.logger.Info("fleet retention run completed",
		"tenants", len(results),
		"failed", failed,
		"dry_run", opts.DryRun,
	)
	return results, nil
}
