package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mlssync/internal/client/mls"
	"mlssync/internal/models"
)

func TestSyncResourceFirstRunSinglePage(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceMember, 120)

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Member"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.OK || res.Pages != 1 || res.Fetched != 120 || res.Upserted != 120 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if env.mls.requestCount() != 1 {
		t.Fatalf("requests = %d, want 1", env.mls.requestCount())
	}
	want := baseTime.Add(120 * time.Minute)
	cur, ok := env.store.cursor(ResourceMember)
	if !ok || cur.LastModifiedWatermark == nil || !cur.LastModifiedWatermark.Equal(want) {
		t.Fatalf("cursor = %+v, want watermark %s", cur, want)
	}
	if res.LastWatermark == nil || !res.LastWatermark.Equal(want) {
		t.Fatalf("result watermark = %v", res.LastWatermark)
	}
}

func TestSyncResourceStopsAfterShortPage(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceProperty, 440)

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Property"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Pages != 3 || res.Fetched != 440 || res.Outcome != OutcomeDrained {
		t.Fatalf("unexpected result: %+v", res)
	}
	if env.mls.requestCount() != 3 {
		t.Fatalf("requests = %d, want 3", env.mls.requestCount())
	}
	if got := env.store.rowCount("mls_properties"); got != 440 {
		t.Fatalf("rows = %d, want 440", got)
	}
}

func TestSyncResourceRecordEditedBetweenPages(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceMember, 400)
	edited := baseTime.Add(1000 * time.Minute)
	env.mls.beforeServe = func(n int) {
		if n == 2 {
			env.mls.touch(ResourceMember, "Member-0001", edited)
		}
	}

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Member"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := env.store.rowCount("mls_members"); got != 400 {
		t.Fatalf("rows = %d, want 400", got)
	}
	if res.Pages != 3 || res.Fetched != 401 || res.Outcome != OutcomeDrained {
		t.Fatalf("unexpected result: %+v", res)
	}
	cur, ok := env.store.cursor(ResourceMember)
	if !ok || cur.LastModifiedWatermark == nil || !cur.LastModifiedWatermark.Equal(edited) {
		t.Fatalf("cursor = %+v, want watermark %s", cur, edited)
	}
	env.mls.mu.Lock()
	requests := append([]string(nil), env.mls.requests...)
	env.mls.mu.Unlock()
	for _, r := range requests {
		if strings.Contains(r, "skip") {
			t.Fatalf("request paged by offset: %s", r)
		}
	}
}

func TestSyncResourceFollowsNextLink(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.serverPage = 50
	env.mls.seed(ResourceOffice, 120)

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Office"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Pages != 3 || res.Fetched != 120 || env.store.rowCount("mls_offices") != 120 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSyncResourcePageCeiling(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.syncer.MaxPages = 2
	env.mls.seed(ResourceMember, 1000)
	cfg := mustResource(t, "Member")

	res, err := env.syncer.SyncResource(context.Background(), cfg)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.OK || res.Outcome != OutcomeCeiling || res.Pages != 2 || res.Fetched != 400 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if want := baseTime.Add(400 * time.Minute); !res.LastWatermark.Equal(want) {
		t.Fatalf("watermark = %s, want %s", res.LastWatermark, want)
	}

	next, err := env.syncer.SyncResource(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if next.Fetched != 400 || env.store.rowCount("mls_members") != 800 {
		t.Fatalf("second run should continue from the watermark: %+v", next)
	}
}

func TestSyncResourceEmptyFirstRunPersistsLookback(t *testing.T) {
	env := newSyncEnv(t, nil)

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "OpenHouse"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.OK || res.Pages != 0 || res.Fetched != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	cur, ok := env.store.cursor(ResourceOpenHouse)
	want := testNow.Add(-365 * 24 * time.Hour)
	if !ok || !cur.LastModifiedWatermark.Equal(want) {
		t.Fatalf("cursor = %+v, want %s", cur, want)
	}
}

func TestSyncResourceClientErrorKeepsCursor(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceProperty, 30)
	before := baseTime.Add(10 * time.Minute)
	env.store.cursors[ResourceProperty] = models.SyncCursor{Resource: ResourceProperty, LastModifiedWatermark: &before}
	env.mls.script = []int{400}

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Property"))
	var upstream *mls.UpstreamError
	if !errors.As(err, &upstream) || upstream.Status != 400 {
		t.Fatalf("expected UpstreamError 400, got %v", err)
	}
	if res.OK || res.ErrorKind != KindUpstream || res.Outcome != OutcomeFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if env.mls.requestCount() != 1 || len(*env.sleeps) != 0 {
		t.Fatalf("400 must not be retried: requests=%d sleeps=%v", env.mls.requestCount(), *env.sleeps)
	}
	cur, _ := env.store.cursor(ResourceProperty)
	if !cur.LastModifiedWatermark.Equal(before) {
		t.Fatalf("watermark moved to %s", cur.LastModifiedWatermark)
	}
	if cur.LastError == nil || cur.LastRunNotes == nil || *cur.LastRunNotes != "failed" {
		t.Fatalf("failure not recorded on cursor: %+v", cur)
	}
}

func TestSyncResourceRecoversFromRateLimit(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceOffice, 50)
	env.mls.script = []int{429, 429, 429}

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Office"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !res.OK || res.Fetched != 50 {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(*env.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *env.sleeps, want)
	}
	for i := range want {
		if (*env.sleeps)[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", *env.sleeps, want)
		}
	}
}

func TestSyncResourceUpsertFailureDoesNotCreateCursor(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceMember, 10)
	env.store.failUpsert = errBoom

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Member"))
	var perr *PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, errBoom) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if res.ErrorKind != KindPersistence {
		t.Fatalf("error kind = %q", res.ErrorKind)
	}
	if _, ok := env.store.cursor(ResourceMember); ok {
		t.Fatalf("cursor must not exist after a failed first run")
	}
}

func TestSyncResourceSkipsRecordsWithoutKey(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceMember, 5)
	late := baseTime.Add(time.Hour)
	env.mls.data[ResourceMember] = append(env.mls.data[ResourceMember], mls.RawRecord{
		"MemberFullName":          "No Key",
		"RFModificationTimestamp": late.Format(time.RFC3339),
	})

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Member"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Fetched != 6 || res.Upserted != 5 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.LastWatermark.Equal(late) {
		t.Fatalf("watermark = %s, want %s", res.LastWatermark, late)
	}
}

func TestSyncResourceWatermarkOverlap(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.syncer.WatermarkOverlap = 5 * time.Minute
	env.mls.seed(ResourceMember, 20)
	before := baseTime.Add(10 * time.Minute)
	env.store.cursors[ResourceMember] = models.SyncCursor{Resource: ResourceMember, LastModifiedWatermark: &before}

	res, err := env.syncer.SyncResource(context.Background(), mustResource(t, "Member"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Fetched != 15 {
		t.Fatalf("fetched = %d, want 15 (five re-read inside the overlap)", res.Fetched)
	}
	if want := baseTime.Add(20 * time.Minute); !res.LastWatermark.Equal(want) {
		t.Fatalf("watermark = %s, want %s", res.LastWatermark, want)
	}
}

func TestSyncResourceConcurrentRunsAreIdempotent(t *testing.T) {
	env := newSyncEnv(t, nil)
	env.mls.seed(ResourceMember, 120)
	cfg := mustResource(t, "Member")

	var wg sync.WaitGroup
	results := make([]SyncRunResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.syncer.SyncResource(context.Background(), cfg)
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil || !results[i].OK {
			t.Fatalf("run %d failed: %+v %v", i, results[i], errs[i])
		}
	}
	if got := env.store.rowCount("mls_members"); got != 120 {
		t.Fatalf("rows = %d, want 120", got)
	}
	cur, _ := env.store.cursor(ResourceMember)
	if want := baseTime.Add(120 * time.Minute); !cur.LastModifiedWatermark.Equal(want) {
		t.Fatalf("watermark = %s, want %s", cur.LastModifiedWatermark, want)
	}
}
