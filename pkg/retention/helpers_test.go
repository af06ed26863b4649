package retention_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/store/memory"
	"mercator-hq/custodian/pkg/tenant"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func newPurger(t *testing.T, store retention.RowStore, settings tenant.SettingsReader, sink *memory.Store, config *retention.Config) *retention.Purger {
	t.Helper()
	p := retention.NewPurger(store, tenant.NewLoader(settings, nil), sink, config)
	p.SetClock(func() time.Time { return testNow })
	return p
}

func putSetting(t *testing.T, store *memory.Store, orgID, key string, value any) {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if err := store.PutSetting(context.Background(), orgID, key, raw); err != nil {
		t.Fatalf("PutSetting() failed: %v", err)
	}
}

// seedMessages adds n messages to threadID, all created at the same instant.
func seedMessages(store *memory.Store, orgID, threadID, prefix string, n int, at time.Time) {
	for i := range n {
		store.AddMessage(orgID, threadID, fmt.Sprintf("%s-%04d", prefix, i), at)
	}
}

// faultyStore fails deletes on one table and records every delete call.
type faultyStore struct {
	*memory.Store
	failTable   retention.Table
	err         error
	deleteCalls [][]string
}

func (f *faultyStore) DeleteByIDs(ctx context.Context, table retention.Table, ids []string) (int64, error) {
	f.deleteCalls = append(f.deleteCalls, append([]string(nil), ids...))
	if table == f.failTable {
		return 0, f.err
	}
	return f.Store.DeleteByIDs(ctx, table, ids)
}

// antiJoinStore adds a native orphan query on top of the memory store.
type antiJoinStore struct {
	*memory.Store
	orphanCalls int
}

func (a *antiJoinStore) ListOrphanThreads(ctx context.Context, q retention.RowQuery) ([]retention.RowRef, error) {
	a.orphanCalls++

	threads, err := a.Store.ListRows(ctx, retention.RowQuery{Table: retention.TableThreads, OrgID: q.OrgID, After: q.After})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(threads))
	for i, th := range threads {
		ids[i] = th.ID
	}
	used, err := a.Store.ThreadsWithMessages(ctx, q.OrgID, ids)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool, len(used))
	for _, id := range used {
		referenced[id] = true
	}

	var out []retention.RowRef
	for _, th := range threads {
		if referenced[th.ID] {
			continue
		}
		out = append(out, th)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// ThreadsWithMessages must not be used when the anti-join is available.
func (a *antiJoinStore) ThreadsWithMessages(ctx context.Context, orgID string, threadIDs []string) ([]string, error) {
	return nil, fmt.Errorf("two-step orphan selection used")
}
