package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"mercator-hq/custodian/pkg/audit"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/tenant"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "custodian.db")
	config.Driver = "sqlite"

	s, err := New(config)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func exec(t *testing.T, s *Store, query string, args ...any) {
	t.Helper()
	if _, err := s.DB().Exec(query, args...); err != nil {
		t.Fatalf("Exec(%q) failed: %v", query, err)
	}
}

func addThread(t *testing.T, s *Store, orgID, id string, at time.Time) {
	exec(t, s, "INSERT INTO threads (id, org_id, created_at) VALUES (?, ?, ?)", id, orgID, at.UnixMilli())
}

func addMessage(t *testing.T, s *Store, orgID, threadID, id string, at time.Time) {
	exec(t, s, "INSERT INTO messages (id, org_id, thread_id, created_at) VALUES (?, ?, ?, ?)", id, orgID, threadID, at.UnixMilli())
}

func ids(refs []retention.RowRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.ID
	}
	return out
}

// TestStore_SchemaVersion tests that reopening an existing database keeps the schema.
func TestStore_SchemaVersion(t *testing.T) {
	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "custodian.db")
	config.Driver = "sqlite"

	for range 2 {
		s, err := New(config)
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		var version int
		if err := s.DB().QueryRow(GetSchemaVersion).Scan(&version); err != nil {
			t.Fatalf("Scan() failed: %v", err)
		}
		if version != SchemaVersion {
			t.Errorf("Expected version %d, got %d", SchemaVersion, version)
		}
		s.Close()
	}
}

// TestStore_ListRows tests cutoff filtering, tenant scoping and keyset order.
func TestStore_ListRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addMessage(t, s, "org-1", "t-1", "m-b", base)
	addMessage(t, s, "org-1", "t-1", "m-a", base)
	addMessage(t, s, "org-1", "t-1", "m-c", base.Add(time.Hour))
	addMessage(t, s, "org-1", "t-1", "m-new", base.Add(48*time.Hour))
	addMessage(t, s, "org-2", "t-2", "m-other", base)

	cutoff := base.Add(time.Hour)
	first, err := s.ListRows(ctx, retention.RowQuery{
		Table:  retention.TableMessages,
		OrgID:  "org-1",
		Before: &cutoff,
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("ListRows() failed: %v", err)
	}
	if want := []string{"m-a", "m-b"}; !slices.Equal(ids(first), want) {
		t.Fatalf("Expected %v, got %v", want, ids(first))
	}

	second, err := s.ListRows(ctx, retention.RowQuery{
		Table:  retention.TableMessages,
		OrgID:  "org-1",
		Before: &cutoff,
		After:  first[1].Cursor(),
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("ListRows() failed: %v", err)
	}
	if want := []string{"m-c"}; !slices.Equal(ids(second), want) {
		t.Errorf("Expected %v, got %v", want, ids(second))
	}
	if !second[0].CreatedAt.Equal(cutoff) {
		t.Errorf("Expected created_at %v, got %v", cutoff, second[0].CreatedAt)
	}
}

// TestStore_ListRows_UnknownTable tests that table names are whitelisted.
func TestStore_ListRows_UnknownTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ListRows(context.Background(), retention.RowQuery{Table: "orgs; DROP TABLE orgs", OrgID: "x"})
	if err == nil {
		t.Fatal("Expected error for unknown table")
	}
}

// TestStore_Orphans tests both orphan paths against the same data.
func TestStore_Orphans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	addThread(t, s, "org-1", "t-empty-old", base.Add(-24*time.Hour))
	addThread(t, s, "org-1", "t-used", base)
	addThread(t, s, "org-1", "t-empty-new", base.Add(time.Second))
	addThread(t, s, "org-2", "t-foreign", base)
	addMessage(t, s, "org-1", "t-used", "m-1", base)

	orphans, err := s.ListOrphanThreads(ctx, retention.RowQuery{OrgID: "org-1", Limit: 10})
	if err != nil {
		t.Fatalf("ListOrphanThreads() failed: %v", err)
	}
	if want := []string{"t-empty-old", "t-empty-new"}; !slices.Equal(ids(orphans), want) {
		t.Errorf("Expected %v, got %v", want, ids(orphans))
	}

	used, err := s.ThreadsWithMessages(ctx, "org-1", []string{"t-empty-old", "t-used", "t-empty-new"})
	if err != nil {
		t.Fatalf("ThreadsWithMessages() failed: %v", err)
	}
	if want := []string{"t-used"}; !slices.Equal(used, want) {
		t.Errorf("Expected %v, got %v", want, used)
	}
}

// TestStore_DeleteByIDs tests that only existing rows are counted.
func TestStore_DeleteByIDs(t *testing.T) {
	s := newTestStore(t)
	for i := range 3 {
		addThread(t, s, "org-1", fmt.Sprintf("t-%d", i), base)
	}

	n, err := s.DeleteByIDs(context.Background(), retention.TableThreads, []string{"t-0", "t-2", "t-missing"})
	if err != nil {
		t.Fatalf("DeleteByIDs() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 deleted, got %d", n)
	}
}

// TestStore_Settings tests settings upsert and read.
func TestStore_Settings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutSetting(ctx, "org-1", tenant.KeyRetentionDays, json.RawMessage("60")); err != nil {
		t.Fatalf("PutSetting() failed: %v", err)
	}
	if err := s.PutSetting(ctx, "org-1", tenant.KeyRetentionDays, json.RawMessage("45")); err != nil {
		t.Fatalf("PutSetting() failed: %v", err)
	}
	if err := s.PutSetting(ctx, "org-1", tenant.KeyLegalHold, json.RawMessage("true")); err != nil {
		t.Fatalf("PutSetting() failed: %v", err)
	}

	settings, err := tenant.NewLoader(s, nil).Load(ctx, "org-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if settings.RetentionDays != 45 || !settings.LegalHold {
		t.Errorf("Unexpected settings: %+v", settings)
	}
}

// TestStore_Insert tests that audit entries are persisted with their meta.
func TestStore_Insert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := audit.NewEntry("org-1", nil, retention.AuditAction, retention.AuditTargetType, "org-1",
		map[string]any{"dryRun": true}, base)
	if err := s.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	var (
		actor any
		meta  string
		ms    int64
	)
	err := s.DB().QueryRow("SELECT actor_id, meta, created_at FROM audit_logs WHERE id = ?", entry.ID).Scan(&actor, &meta, &ms)
	if err != nil {
		t.Fatalf("QueryRow() failed: %v", err)
	}
	if actor != nil {
		t.Errorf("Expected NULL actor, got %v", actor)
	}
	if meta != `{"dryRun":true}` {
		t.Errorf("Unexpected meta %s", meta)
	}
	if ms != base.UnixMilli() {
		t.Errorf("Expected created_at %d, got %d", base.UnixMilli(), ms)
	}
}

// TestStore_PurgeEndToEnd tests the retention engine against SQLite.
func TestStore_PurgeEndToEnd(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := base.AddDate(1, 0, 0)

	if err := s.CreateOrg(ctx, "org-1", "Acme", base); err != nil {
		t.Fatalf("CreateOrg() failed: %v", err)
	}
	if err := s.CreateOrg(ctx, "org-2", "Globex", base.Add(time.Hour)); err != nil {
		t.Fatalf("CreateOrg() failed: %v", err)
	}

	addThread(t, s, "org-1", "t-busy", now.AddDate(0, 0, -200))
	for i := range 25 {
		addMessage(t, s, "org-1", "t-busy", fmt.Sprintf("m-old-%02d", i), now.AddDate(0, 0, -120))
	}
	addMessage(t, s, "org-1", "t-busy", "m-fresh", now.AddDate(0, 0, -1))
	for i := range 3 {
		addThread(t, s, "org-1", fmt.Sprintf("t-empty-%d", i), now.Add(-time.Minute))
	}

	purger := retention.NewPurger(s, tenant.NewLoader(s, nil), s, &retention.Config{BatchSize: 10, PageSize: 4})
	purger.SetClock(func() time.Time { return now })

	results, err := retention.NewFleet(s, purger, 1).Run(ctx, retention.Options{})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	got := results["org-1"]
	if got.Summary == nil {
		t.Fatalf("Expected summary for org-1, got error %q", got.Error)
	}
	if got.Deleted.Messages != 25 || got.Deleted.Threads != 3 {
		t.Errorf("Unexpected counts: %+v", got.Deleted)
	}

	var audits int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM audit_logs WHERE action = ?", retention.AuditAction).Scan(&audits); err != nil {
		t.Fatalf("QueryRow() failed: %v", err)
	}
	if audits != 2 {
		t.Errorf("Expected 2 audit entries, got %d", audits)
	}
}

func TestStore_OrgExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateOrg(ctx, "org-1", "test", base); err != nil {
		t.Fatalf("CreateOrg() failed: %v", err)
	}

	for id, want := range map[string]bool{"org-1": true, "org-2": false, "": false} {
		got, err := s.OrgExists(ctx, id)
		if err != nil {
			t.Fatalf("OrgExists(%q) failed: %v", id, err)
		}
		if got != want {
			t.Errorf("OrgExists(%q) = %v, want %v", id, got, want)
		}
	}
}
