package retention

import (
	"context"
	"time"
)

// Retention floors. Neither is configurable.
const (
	// MinRetentionDays is the smallest window ever applied to messages and
	// model invocations, whatever the tenant stored.
	MinRetentionDays = 30

	// AuditRetentionDays is the fixed window for audit log entries.
	AuditRetentionDays = 365
)

// Audit entry written once per successful run.
const (
	AuditAction     = "retention.purge"
	AuditTargetType = "org"
)

// Table names a retained collection.
type Table string

// Collections walked by PurgeOrgOnce, in processing order.
const (
	TableMessages         Table = "messages"
	TableModelInvocations Table = "model_invocations"
	TableAuditLogs        Table = "audit_logs"
	TableThreads          Table = "threads"
)

// Tables lists the retained collections in processing order.
var Tables = []Table{TableMessages, TableModelInvocations, TableAuditLogs, TableThreads}

// Valid reports whether t names a retained collection. Stores interpolate
// table names into SQL and must reject anything else.
func (t Table) Valid() bool {
	switch t {
	case TableMessages, TableModelInvocations, TableAuditLogs, TableThreads:
		return true
	}
	return false
}

// Cursor is a keyset position on (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// RowRef identifies one stored row.
type RowRef struct {
	ID        string
	CreatedAt time.Time
}

// Cursor returns the keyset position of the row.
func (r RowRef) Cursor() *Cursor {
	return &Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
}

// RowQuery describes one page read from a retained table. Rows are returned
// ordered by (created_at, id) ascending, strictly after After when set, and
// with created_at <= Before when set.
type RowQuery struct {
	Table  Table
	OrgID  string
	Before *time.Time
	After  *Cursor
	Limit  int
}

// RowStore is the data access the retention engine needs.
type RowStore interface {
	// ListRows returns one page of rows of q.Table belonging to q.OrgID.
	ListRows(ctx context.Context, q RowQuery) ([]RowRef, error)

	// ThreadsWithMessages returns the subset of threadIDs referenced by at
	// least one message.
	ThreadsWithMessages(ctx context.Context, orgID string, threadIDs []string) ([]string, error)

	// DeleteByIDs removes the listed rows and reports how many existed.
	DeleteByIDs(ctx context.Context, table Table, ids []string) (int64, error)

	// ListOrgs returns one page of tenants ordered by (created_at, id).
	ListOrgs(ctx context.Context, after *Cursor, limit int) ([]RowRef, error)
}

// OrphanLister is implemented by stores that can find threads without
// messages in a single anti-join query. Only q.OrgID, q.After and q.Limit
// apply.
type OrphanLister interface {
	ListOrphanThreads(ctx context.Context, q RowQuery) ([]RowRef, error)
}

// Options controls a single purge run.
type Options struct {
	// DryRun counts eligible rows without deleting them.
	DryRun bool
}

// Counts holds per-collection row counts.
type Counts struct {
	Messages         int64 `json:"messages"`
	ModelInvocations int64 `json:"modelInvocations"`
	AuditLogs        int64 `json:"auditLogs"`
	Threads          int64 `json:"threads"`
}

// Add increments the counter of table by n.
func (c *Counts) Add(table Table, n int64) {
	switch table {
	case TableMessages:
		c.Messages += n
	case TableModelInvocations:
		c.ModelInvocations += n
	case TableAuditLogs:
		c.AuditLogs += n
	case TableThreads:
		c.Threads += n
	}
}

// Total returns the sum over all collections.
func (c Counts) Total() int64 {
	return c.Messages + c.ModelInvocations + c.AuditLogs + c.Threads
}

// Summary is the outcome of one PurgeOrgOnce run. It is also the meta
// payload of the run's audit entry.
type Summary struct {
	RunID               string    `json:"runId"`
	OrgID               string    `json:"orgId"`
	SkippedForLegalHold bool      `json:"skippedForLegalHold"`
	DryRun              bool      `json:"dryRun"`
	Deleted             Counts    `json:"deleted"`
	EffectiveDays       int       `json:"effectiveDays"`
	BatchSize           int       `json:"batchSize"`
	FinishedAt          time.Time `json:"finishedAt"`
}

// Result is one tenant's entry in a fleet run: either a summary or an
// error message.
type Result struct {
	*Summary
	Error string `json:"error,omitempty"`
}

// Results maps org id to that tenant's result.
type Results map[string]Result

// Failed returns the number of tenants whose run returned an error.
func (r Results) Failed() int {
	n := 0
	for _, res := range r {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// EffectiveDays applies the retention floor to a stored day count.
func EffectiveDays(retentionDays int) int {
	return max(MinRetentionDays, retentionDays)
}
