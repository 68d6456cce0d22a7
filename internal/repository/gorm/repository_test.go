package gormrepository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"mlssync/internal/config"
	"mlssync/internal/db"
	"mlssync/internal/models"
	"mlssync/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open(config.DBConfig{
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(conn.Gorm)
}

var t0 = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

func memberTarget() repository.UpsertTarget {
	return repository.UpsertTarget{
		Table:           "mls_members",
		Key:             "member_key",
		Columns:         []string{"member_full_name", "modification_timestamp", "rf_modification_timestamp", "raw_json"},
		TimestampColumn: "rf_modification_timestamp",
		BatchSize:       2,
	}
}

func memberRow(key, name string, ts, seen time.Time) map[string]any {
	return map[string]any{
		"member_key":                key,
		"member_full_name":          name,
		"modification_timestamp":    ts,
		"rf_modification_timestamp": ts,
		"first_seen_at":             seen,
		"raw_json":                  datatypes.JSON(`{"MemberKey":"` + key + `"}`),
	}
}

func TestUpsertRecordsIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rows := []map[string]any{
		memberRow("M-1", "Ann", t0.Add(time.Minute), t0),
		memberRow("M-2", "Bob", t0.Add(2*time.Minute), t0),
		memberRow("M-3", "Cy", t0.Add(3*time.Minute), t0),
	}
	n, err := store.UpsertRecords(ctx, memberTarget(), rows)
	if err != nil || n != 3 {
		t.Fatalf("first upsert = %d, %v", n, err)
	}

	later := t0.Add(24 * time.Hour)
	again := []map[string]any{
		memberRow("M-1", "Ann", t0.Add(time.Minute), later),
		memberRow("M-2", "Bob", t0.Add(2*time.Minute), later),
		memberRow("M-3", "Cy", t0.Add(3*time.Minute), later),
	}
	if _, err := store.UpsertRecords(ctx, memberTarget(), again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	total, err := store.CountMembers(ctx, repository.ListMembersParams{})
	if err != nil || total != 3 {
		t.Fatalf("count = %d, %v", total, err)
	}
	items, err := store.ListMembers(ctx, repository.ListMembersParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, m := range items {
		if !m.FirstSeenAt.Equal(t0) {
			t.Fatalf("%s first_seen_at = %s, want %s", m.MemberKey, m.FirstSeenAt, t0)
		}
	}
}

func TestUpsertRecordsIgnoresOlderVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.UpsertRecords(ctx, memberTarget(), []map[string]any{
		memberRow("M-1", "Current", t0.Add(time.Hour), t0),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := store.UpsertRecords(ctx, memberTarget(), []map[string]any{
		memberRow("M-1", "Stale", t0.Add(time.Minute), t0),
	})
	if err != nil {
		t.Fatalf("stale upsert: %v", err)
	}
	if n != 0 {
		t.Fatalf("stale upsert affected %d rows", n)
	}
	items, _ := store.ListMembers(ctx, repository.ListMembersParams{})
	if len(items) != 1 || items[0].MemberFullName == nil || *items[0].MemberFullName != "Current" {
		t.Fatalf("row overwritten: %+v", items)
	}

	n, err = store.UpsertRecords(ctx, memberTarget(), []map[string]any{
		memberRow("M-1", "Newer", t0.Add(2*time.Hour), t0),
	})
	if err != nil || n != 1 {
		t.Fatalf("newer upsert = %d, %v", n, err)
	}
}

func TestUpsertRecordsRejectsKeyInUpdateColumns(t *testing.T) {
	store := newTestStore(t)
	target := memberTarget()
	target.Columns = append(target.Columns, "first_seen_at")
	if _, err := store.UpsertRecords(context.Background(), target, []map[string]any{
		memberRow("M-1", "x", t0, t0),
	}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestAdvanceSyncCursorNeverMovesBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	newer := t0.Add(time.Hour)
	older := t0
	notes := "second"

	if err := store.AdvanceSyncCursor(ctx, &models.SyncCursor{Resource: "Member", LastModifiedWatermark: &newer}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.AdvanceSyncCursor(ctx, &models.SyncCursor{Resource: "Member", LastModifiedWatermark: &older, LastRunNotes: &notes}); err != nil {
		t.Fatalf("advance older: %v", err)
	}
	cur, err := store.GetSyncCursor(ctx, "Member")
	if err != nil || cur == nil {
		t.Fatalf("get: %+v %v", cur, err)
	}
	if !cur.LastModifiedWatermark.Equal(newer) {
		t.Fatalf("watermark = %s, want %s", cur.LastModifiedWatermark, newer)
	}
	if cur.LastRunNotes == nil || *cur.LastRunNotes != notes {
		t.Fatalf("notes not updated: %+v", cur.LastRunNotes)
	}
}

func TestMarkSyncCursorFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.MarkSyncCursorFailed(ctx, "Office", t0, "boom"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if cur, _ := store.GetSyncCursor(ctx, "Office"); cur != nil {
		t.Fatalf("failure created a cursor: %+v", cur)
	}

	wm := t0.Add(time.Minute)
	if err := store.AdvanceSyncCursor(ctx, &models.SyncCursor{Resource: "Office", LastModifiedWatermark: &wm}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := store.MarkSyncCursorFailed(ctx, "Office", t0.Add(time.Hour), "boom"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	cur, _ := store.GetSyncCursor(ctx, "Office")
	if cur == nil || !cur.LastModifiedWatermark.Equal(wm) || cur.LastError == nil || *cur.LastError != "boom" {
		t.Fatalf("cursor = %+v", cur)
	}
}

func TestSyncLeaseLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ttl := 10 * time.Minute

	mustLease := func(owner string, now time.Time, want bool) {
		t.Helper()
		got, err := store.AcquireSyncLease(ctx, "Property", owner, now, ttl)
		if err != nil {
			t.Fatalf("acquire %s: %v", owner, err)
		}
		if got != want {
			t.Fatalf("acquire %s at %s = %v, want %v", owner, now, got, want)
		}
	}
	mustLease("a", t0, true)
	mustLease("b", t0.Add(time.Minute), false)
	mustLease("a", t0.Add(2*time.Minute), true)
	mustLease("b", t0.Add(time.Hour), true)

	if err := store.ReleaseSyncLease(ctx, "Property", "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	mustLease("c", t0.Add(time.Hour+time.Minute), false)
	if err := store.ReleaseSyncLease(ctx, "Property", "b"); err != nil {
		t.Fatalf("release: %v", err)
	}
	mustLease("c", t0.Add(time.Hour+time.Minute), true)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if got, err := store.GetAccessToken(ctx, "mls"); err != nil || got != nil {
		t.Fatalf("empty get = %+v, %v", got, err)
	}
	item := &models.AccessToken{Name: "mls", Value: "v1", TokenType: "Bearer", ExpiresAt: t0, UpdatedAt: t0}
	if err := store.SaveAccessToken(ctx, item); err != nil {
		t.Fatalf("save: %v", err)
	}
	item.Value = "v2"
	if err := store.SaveAccessToken(ctx, item); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err := store.GetAccessToken(ctx, "mls")
	if err != nil || got == nil || got.Value != "v2" || !got.ExpiresAt.Equal(t0) {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if err := store.DeleteAccessToken(ctx, "mls"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := store.GetAccessToken(ctx, "mls"); got != nil {
		t.Fatalf("token survived delete")
	}
}

func TestSyncRunsFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i, trig := range []string{"cron", "manual", "cron"} {
		run := &models.SyncRun{
			RunID:      fmt.Sprintf("run-%d", i),
			Trigger:    trig,
			Resources:  "Member",
			StartedAt:  t0.Add(time.Duration(i) * time.Minute),
			FinishedAt: t0.Add(time.Duration(i)*time.Minute + time.Second),
			OK:         i != 2,
		}
		if err := store.InsertSyncRun(ctx, run); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	cron := "cron"
	total, err := store.CountSyncRuns(ctx, repository.ListSyncRunsParams{Trigger: &cron})
	if err != nil || total != 2 {
		t.Fatalf("count = %d, %v", total, err)
	}
	ok := false
	items, err := store.ListSyncRuns(ctx, repository.ListSyncRunsParams{OK: &ok})
	if err != nil || len(items) != 1 || items[0].RunID != "run-2" {
		t.Fatalf("failed runs = %+v, %v", items, err)
	}
	all, _ := store.ListSyncRuns(ctx, repository.ListSyncRunsParams{})
	if len(all) != 3 || all[0].RunID != "run-2" {
		t.Fatalf("runs should be newest first: %+v", all)
	}
}

func TestListPropertiesFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	target := repository.UpsertTarget{
		Table:           "mls_properties",
		Key:             "listing_key",
		Columns:         []string{"city", "list_price", "standard_status", "rf_modification_timestamp", "raw_json"},
		TimestampColumn: "rf_modification_timestamp",
	}
	rows := []map[string]any{}
	for i, city := range []string{"Austin", "austin", "Dallas"} {
		rows = append(rows, map[string]any{
			"listing_key":               fmt.Sprintf("L-%d", i),
			"city":                      city,
			"list_price":                decimal.NewFromInt(int64(300000 + i*100000)),
			"standard_status":           "Active",
			"rf_modification_timestamp": t0.Add(time.Duration(i) * time.Minute),
			"first_seen_at":             t0,
			"raw_json":                  datatypes.JSON(`{}`),
		})
	}
	if _, err := store.UpsertRecords(ctx, target, rows); err != nil {
		t.Fatalf("seed: %v", err)
	}

	city := "AUSTIN"
	total, err := store.CountProperties(ctx, repository.ListPropertiesParams{City: &city})
	if err != nil || total != 2 {
		t.Fatalf("city count = %d, %v", total, err)
	}
	minPrice := decimal.NewFromInt(350000)
	items, err := store.ListProperties(ctx, repository.ListPropertiesParams{MinPrice: &minPrice})
	if err != nil || len(items) != 2 {
		t.Fatalf("min price = %+v, %v", items, err)
	}
	got, err := store.GetProperty(ctx, "L-2")
	if err != nil || got == nil || got.City == nil || *got.City != "Dallas" {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if missing, err := store.GetProperty(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("missing = %+v, %v", missing, err)
	}
}
