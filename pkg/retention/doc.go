// Package retention enforces the tenant data-retention policy.
//
// # Overview
//
// Every tenant keeps four retained collections: chat messages, model
// invocation records, audit log entries and conversation threads. A Purger
// walks them for one tenant:
//
//   - messages and model_invocations older than max(30, retentionDays) days
//   - audit_logs older than 365 days, whatever the tenant configured
//   - threads that no message references, whatever their age
//
// A tenant with legalHold set is never touched. The run is still audited.
//
// # Batching
//
// Each collection is drained in batches of Config.BatchSize ids. A Selector
// fills a batch by reading Config.PageSize rows per query, ordered oldest
// first by (created_at, id), and returns a keyset Cursor so the next batch
// resumes after the last row examined. A Deleter removes the ids of a batch
// in chunks of Config.DeleteChunkSize. The collection is done once a batch
// comes back shorter than BatchSize.
//
// Dry runs select the same batches and count them without deleting.
//
// # Usage
//
//	purger := retention.NewPurger(store, tenant.NewLoader(store, nil), store, nil)
//	summary, err := purger.PurgeOrgOnce(ctx, orgID, nil, retention.Options{})
//
//	fleet := retention.NewFleet(store, purger, 0)
//	results, err := fleet.Run(ctx, retention.Options{DryRun: true})
//
// Fleet.Run isolates tenants: one tenant's error is recorded in its Result
// and the remaining tenants are still processed.
//
// # Failure semantics
//
// There is no transaction across collections and nothing is retried. An
// error aborts the tenant's run, rows already deleted stay deleted, and no
// audit entry is written. The next scheduled run selects the remaining rows
// again.
package retention
