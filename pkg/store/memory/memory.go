// Package memory provides a map-backed store for tests and local experiments.
//
// Store implements retention.RowStore, tenant.SettingsReader,
// tenant.SettingsWriter and audit.Sink. It does not implement
// retention.OrphanLister, so the retention engine falls back to its
// page-then-filter orphan selection against it.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"mercator-hq/custodian/pkg/audit"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/tenant"
)

type row struct {
	id        string
	orgID     string
	threadID  string
	createdAt time.Time
}

func (r row) ref() retention.RowRef {
	return retention.RowRef{ID: r.id, CreatedAt: r.createdAt}
}

// Store is an in-memory implementation of the custodian store interfaces.
// It is intended for testing only and should not be used in production.
type Store struct {
	mu       sync.RWMutex
	orgs     map[string]row
	tables   map[retention.Table]map[string]row
	settings map[string]map[string]json.RawMessage
	entries  []audit.Entry
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		orgs: make(map[string]row),
		tables: map[retention.Table]map[string]row{
			retention.TableMessages:         {},
			retention.TableModelInvocations: {},
			retention.TableAuditLogs:        {},
			retention.TableThreads:          {},
		},
		settings: make(map[string]map[string]json.RawMessage),
		now:      time.Now,
	}
}

// AddOrg registers a tenant.
func (s *Store) AddOrg(id string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[id] = row{id: id, orgID: id, createdAt: createdAt}
}

// AddThread inserts a thread.
func (s *Store) AddThread(orgID, id string, createdAt time.Time) {
	s.add(retention.TableThreads, row{id: id, orgID: orgID, createdAt: createdAt})
}

// AddMessage inserts a message in threadID.
func (s *Store) AddMessage(orgID, threadID, id string, createdAt time.Time) {
	s.add(retention.TableMessages, row{id: id, orgID: orgID, threadID: threadID, createdAt: createdAt})
}

// AddModelInvocation inserts a model invocation record.
func (s *Store) AddModelInvocation(orgID, id string, createdAt time.Time) {
	s.add(retention.TableModelInvocations, row{id: id, orgID: orgID, createdAt: createdAt})
}

// AddAuditLog inserts a bare audit log row.
func (s *Store) AddAuditLog(orgID, id string, createdAt time.Time) {
	s.add(retention.TableAuditLogs, row{id: id, orgID: orgID, createdAt: createdAt})
}

func (s *Store) add(table retention.Table, r row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table][r.id] = r
}

// Count returns the number of rows of orgID in table.
func (s *Store) Count(table retention.Table, orgID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.tables[table] {
		if r.orgID == orgID {
			n++
		}
	}
	return n
}

// Has reports whether table still holds id.
func (s *Store) Has(table retention.Table, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[table][id]
	return ok
}

// AuditEntries returns the entries written through Insert for orgID, oldest
// first.
func (s *Store) AuditEntries(orgID string) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, e := range s.entries {
		if e.OrgID == orgID {
			out = append(out, e)
		}
	}
	return out
}

// ListRows implements retention.RowStore.
func (s *Store) ListRows(ctx context.Context, q retention.RowQuery) ([]retention.RowRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []row
	for _, r := range s.tables[q.Table] {
		if r.orgID != q.OrgID {
			continue
		}
		if q.Before != nil && r.createdAt.After(*q.Before) {
			continue
		}
		if q.After != nil && !afterCursor(r, q.After) {
			continue
		}
		rows = append(rows, r)
	}
	return page(rows, q.Limit), nil
}

// ThreadsWithMessages implements retention.RowStore.
func (s *Store) ThreadsWithMessages(ctx context.Context, orgID string, threadIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	used := make(map[string]bool)
	for _, m := range s.tables[retention.TableMessages] {
		if m.orgID == orgID && m.threadID != "" {
			used[m.threadID] = true
		}
	}

	var out []string
	for _, id := range threadIDs {
		if used[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// DeleteByIDs implements retention.RowStore.
func (s *Store) DeleteByIDs(ctx context.Context, table retention.Table, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	var n int64
	for _, id := range ids {
		if _, ok := rows[id]; ok {
			delete(rows, id)
			n++
		}
	}
	return n, nil
}

// ListOrgs implements retention.RowStore.
func (s *Store) ListOrgs(ctx context.Context, after *retention.Cursor, limit int) ([]retention.RowRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []row
	for _, r := range s.orgs {
		if after != nil && !afterCursor(r, after) {
			continue
		}
		rows = append(rows, r)
	}
	return page(rows, limit), nil
}

// OrgExists reports whether id was added with AddOrg.
func (s *Store) OrgExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.orgs[id]
	return ok, nil
}

// ListSettings implements tenant.SettingsReader.
func (s *Store) ListSettings(ctx context.Context, orgID string) ([]tenant.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tenant.Row
	for key, value := range s.settings[orgID] {
		out = append(out, tenant.Row{Key: key, Value: slices.Clone(value)})
	}
	slices.SortFunc(out, func(a, b tenant.Row) int { return cmp.Compare(a.Key, b.Key) })
	return out, nil
}

// PutSetting implements tenant.SettingsWriter.
func (s *Store) PutSetting(ctx context.Context, orgID, key string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.settings[orgID]
	if !ok {
		m = make(map[string]json.RawMessage)
		s.settings[orgID] = m
	}
	m[key] = slices.Clone(value)
	return nil
}

// Insert implements audit.Sink. The entry also becomes an audit_logs row so
// later retention runs see it.
func (s *Store) Insert(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	s.entries = append(s.entries, entry)
	s.tables[retention.TableAuditLogs][entry.ID] = row{id: entry.ID, orgID: entry.OrgID, createdAt: createdAt}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func afterCursor(r row, c *retention.Cursor) bool {
	if r.createdAt.Equal(c.CreatedAt) {
		return r.id > c.ID
	}
	return r.createdAt.After(c.CreatedAt)
}

// page sorts rows by (created_at, id) and keeps the first limit.
func page(rows []row, limit int) []retention.RowRef {
	slices.SortFunc(rows, func(a, b row) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]retention.RowRef, len(rows))
	for i, r := range rows {
		out[i] = r.ref()
	}
	return out
}
