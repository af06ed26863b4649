package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/custodian/pkg/audit"
	"mercator-hq/custodian/pkg/tenant"
)

const instrumentationName = "mercator-hq/custodian/retention"

// Run outcomes reported to the Recorder.
const (
	OutcomeSuccess   = "success"
	OutcomeLegalHold = "legal_hold"
	OutcomeError     = "error"
)

// SettingsLoader returns the effective settings of a tenant.
type SettingsLoader interface {
	Load(ctx context.Context, orgID string) (*tenant.Settings, error)
}

// Recorder receives run and row metrics.
type Recorder interface {
	RecordRun(outcome string, duration time.Duration)
	RecordRows(table Table, n int64, dryRun bool)
	RecordFleet(tenants, failed int)
}

type noopRecorder struct{}

func (noopRecorder) RecordRun(string, time.Duration) {}
func (noopRecorder) RecordRows(Table, int64, bool)   {}
func (noopRecorder) RecordFleet(int, int)            {}

// Purger applies the retention policy to one tenant at a time.
type Purger struct {
	settings SettingsLoader
	sink     audit.Sink
	selector *Selector
	deleter  *Deleter
	config   *Config
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

// NewPurger creates a purger. A nil config uses DefaultConfig.
func NewPurger(store RowStore, settings SettingsLoader, sink audit.Sink, config *Config) *Purger {
	config = config.normalized()

	return &Purger{
		settings: settings,
		sink:     sink,
		selector: NewSelector(store, config.PageSize),
		deleter:  NewDeleter(store, config.DeleteChunkSize),
		config:   config,
		logger:   slog.Default().With("component", "retention"),
		recorder: noopRecorder{},
		tracer:   otel.Tracer(instrumentationName),
		now:      time.Now,
	}
}

// SetRecorder installs a metrics recorder.
func (p *Purger) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	p.recorder = r
}

// SetClock overrides the time source used for cutoffs and timestamps.
func (p *Purger) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// SetLogger replaces the component logger.
func (p *Purger) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Config returns the effective configuration.
func (p *Purger) Config() Config {
	return *p.config
}

// collectionPlan is one collection walk of a run.
type collectionPlan struct {
	table  Table
	mode   Mode
	cutoff time.Time
}

// PurgeOrgOnce runs the retention policy for orgID.
//
// Messages and model invocations older than max(30, retentionDays) days are
// removed, audit log entries older than 365 days are removed, and threads
// without any message are removed whatever their age. A tenant on legal hold
// is left untouched. Each collection is drained batch by batch, oldest rows
// first, with no transaction spanning collections.
//
// On success exactly one audit entry is written, attributed to actorID (nil
// means the system), and the summary is returned. Any failure aborts the run
// without writing an audit entry; rows already deleted stay deleted.
func (p *Purger) PurgeOrgOnce(ctx context.Context, orgID string, actorID *string, opts Options) (*Summary, error) {
	start := p.now()
	ctx, span := p.tracer.Start(ctx, "retention.purge_org",
		trace.WithAttributes(
			attribute.String("org.id", orgID),
			attribute.Bool("retention.dry_run", opts.DryRun),
		),
	)
	defer span.End()

	summary, err := p.purge(ctx, orgID, actorID, opts, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.recorder.RecordRun(OutcomeError, p.now().Sub(start))
		p.logger.Error("retention run failed",
			"org_id", orgID,
			"dry_run", opts.DryRun,
			"error", err,
		)
		return nil, err
	}

	outcome := OutcomeSuccess
	if summary.SkippedForLegalHold {
		outcome = OutcomeLegalHold
	}
	span.SetAttributes(
		attribute.Bool("retention.legal_hold", summary.SkippedForLegalHold),
		attribute.Int64("retention.rows", summary.Deleted.Total()),
	)
	p.recorder.RecordRun(outcome, p.now().Sub(start))

	return summary, nil
}

func (p *Purger) purge(ctx context.Context, orgID string, actorID *string, opts Options, start time.Time) (*Summary, error) {
	settings, err := p.settings.Load(ctx, orgID)
	if err != nil {
		return nil, NewPurgeError(orgID, "settings", err)
	}

	effectiveDays := EffectiveDays(settings.RetentionDays)
	summary := &Summary{
		RunID:         uuid.NewString(),
		OrgID:         orgID,
		DryRun:        opts.DryRun,
		EffectiveDays: effectiveDays,
		BatchSize:     p.config.BatchSize,
	}

	if settings.LegalHold {
		p.logger.Info("tenant on legal hold, skipping retention",
			"org_id", orgID,
			"run_id", summary.RunID,
		)
		summary.SkippedForLegalHold = true
		return p.finish(ctx, summary, actorID)
	}

	// Days are counted in UTC so a DST change in the host zone cannot
	// shorten the window by an hour.
	cutoffMessages := start.UTC().AddDate(0, 0, -effectiveDays)
	cutoffAudit := start.UTC().AddDate(0, 0, -AuditRetentionDays)

	plans := []collectionPlan{
		{table: TableMessages, mode: ModeCutoff, cutoff: cutoffMessages},
		{table: TableModelInvocations, mode: ModeCutoff, cutoff: cutoffMessages},
		{table: TableAuditLogs, mode: ModeCutoff, cutoff: cutoffAudit},
		{table: TableThreads, mode: ModeOrphan},
	}

	for _, plan := range plans {
		n, err := p.drain(ctx, orgID, plan, opts.DryRun)
		if err != nil {
			return nil, NewPurgeError(orgID, string(plan.table), err)
		}
		summary.Deleted.Add(plan.table, n)
		p.recorder.RecordRows(plan.table, n, opts.DryRun)
	}

	p.logger.Info("retention run completed",
		"org_id", orgID,
		"run_id", summary.RunID,
		"dry_run", opts.DryRun,
		"effective_days", effectiveDays,
		"messages", summary.Deleted.Messages,
		"model_invocations", summary.Deleted.ModelInvocations,
		"audit_logs", summary.Deleted.AuditLogs,
		"threads", summary.Deleted.Threads,
	)

	return p.finish(ctx, summary, actorID)
}

// drain walks one collection until a batch comes back short.
func (p *Purger) drain(ctx context.Context, orgID string, plan collectionPlan, dryRun bool) (int64, error) {
	var (
		total  int64
		cursor *Cursor
	)

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := p.selector.SelectIDs(ctx, Selection{
			Table:  plan.table,
			OrgID:  orgID,
			Mode:   plan.mode,
			Cutoff: plan.cutoff,
			After:  cursor,
			Limit:  p.config.BatchSize,
		})
		if err != nil {
			return total, err
		}

		if dryRun {
			total += int64(len(batch.IDs))
		} else {
			n, err := p.deleter.DeleteByIDs(ctx, plan.table, batch.IDs)
			if err != nil {
				return total, err
			}
			total += n
		}

		p.logger.Debug("retention batch processed",
			"org_id", orgID,
			"collection", plan.table,
			"selected", len(batch.IDs),
			"dry_run", dryRun,
		)

		if len(batch.IDs) < p.config.BatchSize || batch.Exhausted {
			return total, nil
		}
		cursor = batch.Next
	}
}

// finish stamps the summary and writes the run's audit entry.
func (p *Purger) finish(ctx context.Context, summary *Summary, actorID *string) (*Summary, error) {
	summary.FinishedAt = p.now().UTC()

	entry := audit.NewEntry(summary.OrgID, actorID, AuditAction, AuditTargetType, summary.OrgID, summary, summary.FinishedAt)
	if p.sink == nil {
		return nil, NewPurgeError(summary.OrgID, "audit", ErrNoStore)
	}
	if err := p.sink.Insert(ctx, entry); err != nil {
		return nil, NewPurgeError(summary.OrgID, "audit", err)
	}
	return summary, nil
}
