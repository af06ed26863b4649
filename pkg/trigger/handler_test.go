package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/custodian/pkg/config"
	"mercator-hq/custodian/pkg/lock"
	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/store/memory"
	"mercator-hq/custodian/pkg/tenant"
)

const testSecret = "s3cret-token"

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Database.Backend = "memory"
	cfg.Trigger.Secret = testSecret
	return cfg
}

// seed adds one tenant with an overdue message, a fresh message and an
// empty thread.
func seed(store *memory.Store, orgID string) {
	now := time.Now()
	store.AddOrg(orgID, now.AddDate(0, 0, -500))
	store.AddThread(orgID, orgID+"-t", now.AddDate(0, 0, -300))
	store.AddMessage(orgID, orgID+"-t", orgID+"-old", now.AddDate(0, 0, -200))
	store.AddMessage(orgID, orgID+"-t", orgID+"-new", now.AddDate(0, 0, -1))
	store.AddThread(orgID, orgID+"-empty", now.AddDate(0, 0, -5))
}

type fixture struct {
	store   *memory.Store
	holder  *config.Holder
	handler *Handler
	mux     *http.ServeMux
}

func newFixture(t *testing.T, cfg *config.Config, locker lock.Locker) *fixture {
	t.Helper()
	store := memory.New()
	holder := config.NewHolder("", cfg)
	h := NewHandler(holder, store, locker)
	mux := http.NewServeMux()
	h.Register(mux, cfg.Trigger.Path)
	return &fixture{store: store, holder: holder, handler: h, mux: mux}
}

func (f *fixture) do(t *testing.T, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// TestServeFleet tests a full run over two tenants, one under legal hold.
func TestServeFleet(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	seed(f.store, "org-a")
	seed(f.store, "org-b")
	if err := f.store.PutSetting(context.Background(), "org-b", tenant.KeyLegalHold, json.RawMessage("true")); err != nil {
		t.Fatalf("PutSetting() failed: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/cron/retention", map[string]string{"X-Cron-Secret": testSecret})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[FleetResponse](t, rec)
	if !resp.OK || resp.DryRun {
		t.Errorf("Expected ok and not dry run, got %+v", resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Results))
	}

	a := resp.Results["org-a"]
	if a.Summary == nil || a.Deleted.Messages != 1 || a.Deleted.Threads != 1 {
		t.Errorf("Unexpected org-a result: %+v", a)
	}
	b := resp.Results["org-b"]
	if b.Summary == nil || !b.SkippedForLegalHold || b.Deleted.Total() != 0 {
		t.Errorf("Unexpected org-b result: %+v", b)
	}

	if !f.store.Has(retention.TableMessages, "org-b-old") {
		t.Error("Expected held tenant to keep its rows")
	}
	for _, org := range []string{"org-a", "org-b"} {
		entries := f.store.AuditEntries(org)
		if len(entries) != 1 {
			t.Fatalf("Expected 1 audit entry for %s, got %d", org, len(entries))
		}
		if entries[0].ActorID != nil {
			t.Errorf("Expected system actor for %s", org)
		}
	}
}

// TestServeFleet_DryRunFromConfig tests that dry run follows the current
// configuration and leaves rows in place.
func TestServeFleet_DryRunFromConfig(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	seed(f.store, "org-a")

	cfg := testConfig()
	cfg.Retention.DryRun = true
	if err := f.holder.Store(cfg); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/cron/retention", map[string]string{"X-Cron-Secret": testSecret})
	resp := decode[FleetResponse](t, rec)
	if !resp.DryRun {
		t.Error("Expected dryRun echoed as true")
	}
	if got := resp.Results["org-a"].Deleted.Messages; got != 1 {
		t.Errorf("Expected 1 would-be deleted message, got %d", got)
	}
	if !f.store.Has(retention.TableMessages, "org-a-old") {
		t.Error("Dry run deleted a row")
	}
}

// TestServeFleet_Auth tests that rejected requests do no work.
func TestServeFleet_Auth(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		headers map[string]string
		code    int
	}{
		{"missing header", testSecret, nil, http.StatusForbidden},
		{"wrong secret", testSecret, map[string]string{"X-Cron-Secret": "nope"}, http.StatusForbidden},
		{"secret prefix", testSecret, map[string]string{"X-Cron-Secret": testSecret[:4]}, http.StatusForbidden},
		{"server secret unset", "", map[string]string{"X-Cron-Secret": testSecret}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Trigger.Secret = tt.secret
			f := newFixture(t, cfg, nil)
			seed(f.store, "org-a")

			rec := f.do(t, http.MethodPost, "/api/cron/retention", tt.headers)
			if rec.Code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, rec.Code)
			}
			if decode[FleetResponse](t, rec).OK {
				t.Error("Expected ok false")
			}
			if !f.store.Has(retention.TableMessages, "org-a-old") {
				t.Error("Rejected request deleted rows")
			}
			if n := len(f.store.AuditEntries("org-a")); n != 0 {
				t.Errorf("Expected no audit entries, got %d", n)
			}
		})
	}
}

func TestServeFleet_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	rec := f.do(t, http.MethodGet, "/api/cron/retention", map[string]string{"X-Cron-Secret": testSecret})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

type heldLocker struct{ err error }

func (l heldLocker) Acquire(context.Context, string, time.Duration) (lock.Lease, error) {
	return nil, l.err
}

func (heldLocker) Close() error { return nil }

func TestServeFleet_LeaseHeld(t *testing.T) {
	f := newFixture(t, testConfig(), heldLocker{err: lock.ErrHeld})
	seed(f.store, "org-a")

	rec := f.do(t, http.MethodPost, "/api/cron/retention", map[string]string{"X-Cron-Secret": testSecret})
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
	if !f.store.Has(retention.TableMessages, "org-a-old") {
		t.Error("Expected no deletions while the lease is held")
	}
}

func TestServeFleet_LeaseError(t *testing.T) {
	f := newFixture(t, testConfig(), heldLocker{err: errors.New("redis down")})
	rec := f.do(t, http.MethodPost, "/api/cron/retention", map[string]string{"X-Cron-Secret": testSecret})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
}

type failingSettings struct {
	*memory.Store
	failOrg string
}

func (s failingSettings) ListSettings(ctx context.Context, orgID string) ([]tenant.Row, error) {
	if orgID == s.failOrg {
		return nil, errors.New("settings unavailable")
	}
	return s.Store.ListSettings(ctx, orgID)
}

// TestServeFleet_TenantFailure tests that one failing tenant is reported
// without stopping the others.
func TestServeFleet_TenantFailure(t *testing.T) {
	mem := memory.New()
	seed(mem, "org-a")
	seed(mem, "org-b")

	cfg := testConfig()
	h := NewHandler(config.NewHolder("", cfg), failingSettings{Store: mem, failOrg: "org-a"}, nil)
	mux := http.NewServeMux()
	h.Register(mux, cfg.Trigger.Path)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/retention", nil)
	req.Header.Set("X-Cron-Secret", testSecret)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decode[FleetResponse](t, rec)
	if !strings.Contains(resp.Results["org-a"].Error, "settings unavailable") {
		t.Errorf("Expected org-a error, got %+v", resp.Results["org-a"])
	}
	if resp.Results["org-b"].Summary == nil {
		t.Error("Expected org-b to run after org-a failed")
	}
	if n := len(mem.AuditEntries("org-a")); n != 0 {
		t.Errorf("Expected no audit entry for failed tenant, got %d", n)
	}
}

// TestServeOrg tests the per-tenant route with actor attribution.
func TestServeOrg(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	seed(f.store, "org-a")
	seed(f.store, "org-b")

	rec := f.do(t, http.MethodPost, "/api/cron/retention/orgs/org-a", map[string]string{
		"X-Cron-Secret": testSecret,
		"X-Actor-ID":    "user-7",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[OrgResponse](t, rec)
	if !resp.OK || resp.Summary == nil || resp.Summary.OrgID != "org-a" {
		t.Fatalf("Unexpected response: %+v", resp)
	}

	entries := f.store.AuditEntries("org-a")
	if len(entries) != 1 || entries[0].ActorID == nil || *entries[0].ActorID != "user-7" {
		t.Errorf("Expected one audit entry by user-7, got %+v", entries)
	}
	if !f.store.Has(retention.TableMessages, "org-b-old") {
		t.Error("Per-tenant run touched another tenant")
	}
}

func TestServeOrg_Forbidden(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	seed(f.store, "org-a")

	rec := f.do(t, http.MethodPost, "/api/cron/retention/orgs/org-a", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	if n := len(f.store.AuditEntries("org-a")); n != 0 {
		t.Errorf("Expected no audit entries, got %d", n)
	}
}

// TestServeOrg_UnknownOrg tests that an id with no tenant row is rejected
// before any purge or audit write.
func TestServeOrg_UnknownOrg(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	seed(f.store, "org-a")

	for _, id := range []string{"org-missing", "not-a-uuid"} {
		rec := f.do(t, http.MethodPost, "/api/cron/retention/orgs/"+id, map[string]string{"X-Cron-Secret": testSecret})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404 for %s, got %d: %s", id, rec.Code, rec.Body.String())
		}
		resp := decode[OrgResponse](t, rec)
		if resp.OK || resp.Summary != nil || resp.Error == "" {
			t.Errorf("Unexpected response for %s: %+v", id, resp)
		}
		if n := len(f.store.AuditEntries(id)); n != 0 {
			t.Errorf("Expected no audit entries for %s, got %d", id, n)
		}
	}
}

type recorder struct {
	retention.Recorder
	codes map[string][]int
}

func (r *recorder) RecordTrigger(route string, code int) {
	r.codes[route] = append(r.codes[route], code)
}

func TestHandler_RecordsTrigger(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	rec := &recorder{Recorder: nopRecorder{}, codes: map[string][]int{}}
	f.handler.SetRecorder(rec)

	f.do(t, http.MethodPost, "/api/cron/retention", nil)
	f.do(t, http.MethodPost, "/api/cron/retention", map[string]string{"X-Cron-Secret": testSecret})
	f.do(t, http.MethodPost, "/api/cron/retention/orgs/x", map[string]string{"X-Cron-Secret": testSecret})

	if got := rec.codes[RouteFleet]; len(got) != 2 || got[0] != 403 || got[1] != 200 {
		t.Errorf("Unexpected fleet codes %v", got)
	}
	if got := rec.codes[RouteOrg]; len(got) != 1 || got[0] != 404 {
		t.Errorf("Unexpected org codes %v", got)
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(string, time.Duration)          {}
func (nopRecorder) RecordRows(retention.Table, int64, bool) {}
func (nopRecorder) RecordFleet(int, int)                    {}
