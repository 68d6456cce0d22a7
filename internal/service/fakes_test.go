package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"mlssync/internal/client/mls"
	"mlssync/internal/config"
	"mlssync/internal/models"
	"mlssync/internal/repository"
)

// memStore is an in-memory SyncRepository with the same upsert, cursor and
// lease rules as the gorm store.
type memStore struct {
	mu         sync.Mutex
	tables     map[string]map[string]map[string]any
	cursors    map[string]models.SyncCursor
	leases     map[string]models.SyncLease
	runs       []models.SyncRun
	failUpsert error
	upserts    int
	// leaseCalls counts AcquireSyncLease calls, renewals included.
	leaseCalls int
}

func newMemStore() *memStore {
	return &memStore{
		tables:  map[string]map[string]map[string]any{},
		cursors: map[string]models.SyncCursor{},
		leases:  map[string]models.SyncLease{},
	}
}

var _ repository.SyncRepository = (*memStore)(nil)

func (m *memStore) UpsertRecords(_ context.Context, target repository.UpsertTarget, rows []map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failUpsert != nil {
		return 0, m.failUpsert
	}
	table := m.tables[target.Table]
	if table == nil {
		table = map[string]map[string]any{}
		m.tables[target.Table] = table
	}
	var n int64
	for _, row := range rows {
		key, _ := row[target.Key].(string)
		existing, ok := table[key]
		if !ok {
			copied := make(map[string]any, len(row))
			for k, v := range row {
				copied[k] = v
			}
			table[key] = copied
			n++
			continue
		}
		stored, sok := existing[target.TimestampColumn].(time.Time)
		incoming, iok := row[target.TimestampColumn].(time.Time)
		if sok && (!iok || incoming.Before(stored)) {
			continue
		}
		for _, col := range target.Columns {
			existing[col] = row[col]
		}
		n++
	}
	return n, nil
}

func (m *memStore) GetSyncCursor(_ context.Context, resource string) (*models.SyncCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[resource]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) AdvanceSyncCursor(_ context.Context, cursor *models.SyncCursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := *cursor
	if prev, ok := m.cursors[cursor.Resource]; ok && prev.LastModifiedWatermark != nil {
		if next.LastModifiedWatermark == nil || next.LastModifiedWatermark.Before(*prev.LastModifiedWatermark) {
			next.LastModifiedWatermark = prev.LastModifiedWatermark
		}
	}
	m.cursors[cursor.Resource] = next
	return nil
}

func (m *memStore) MarkSyncCursorFailed(_ context.Context, resource string, at time.Time, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[resource]
	if !ok {
		return nil
	}
	notes := "failed"
	c.LastRunAt = &at
	c.LastRunNotes = &notes
	c.LastError = &message
	m.cursors[resource] = c
	return nil
}

func (m *memStore) ListSyncCursors(context.Context) ([]models.SyncCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SyncCursor, 0, len(m.cursors))
	for _, c := range m.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

func (m *memStore) AcquireSyncLease(_ context.Context, resource, owner string, now time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaseCalls++
	if l, ok := m.leases[resource]; ok && l.Owner != owner && !l.ExpiresAt.Before(now) {
		return false, nil
	}
	m.leases[resource] = models.SyncLease{Resource: resource, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return true, nil
}

func (m *memStore) ReleaseSyncLease(_ context.Context, resource, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[resource]; ok && l.Owner == owner {
		delete(m.leases, resource)
	}
	return nil
}

func (m *memStore) InsertSyncRun(_ context.Context, item *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *item)
	return nil
}

func (m *memStore) ListSyncRuns(context.Context, repository.ListSyncRunsParams) ([]models.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SyncRun(nil), m.runs...), nil
}

func (m *memStore) CountSyncRuns(context.Context, repository.ListSyncRunsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.runs)), nil
}

func (m *memStore) setLease(l models.SyncLease) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[l.Resource] = l
}

func (m *memStore) rowCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *memStore) cursor(resource string) (models.SyncCursor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[resource]
	return c, ok
}

// fakeMLS serves OData collections from memory. It honors the
// "<field> gt <timestamp>" filter, $orderby asc, $top and $skip.
type fakeMLS struct {
	mu       sync.Mutex
	data     map[string][]mls.RawRecord
	script   []int
	requests []string
	// serverPage caps the page the server returns and switches to
	// @odata.nextLink continuation.
	serverPage int
	// beforeServe runs before the n-th (1-based) data request is answered.
	beforeServe func(n int)
}

func (f *fakeMLS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.String())
	n := len(f.requests)
	hook := f.beforeServe
	status := 0
	if len(f.script) > 0 {
		status = f.script[0]
		f.script = f.script[1:]
	}
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"scripted"}}`))
		return
	}

	resource := strings.TrimPrefix(r.URL.Path, "/")
	q := r.URL.Query()
	var after time.Time
	if filter := q.Get("$filter"); filter != "" {
		parts := strings.SplitN(filter, " gt ", 2)
		if len(parts) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ts, err := time.Parse(time.RFC3339Nano, parts[1])
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		after = ts
	}
	top, _ := strconv.Atoi(q.Get("$top"))
	skip, _ := strconv.Atoi(q.Get("$skip"))

	f.mu.Lock()
	var matching []mls.RawRecord
	for _, rec := range f.data[resource] {
		ts, _ := RecordTimestamp(rec)
		if ts.After(after) {
			matching = append(matching, rec)
		}
	}
	serverPage := f.serverPage
	f.mu.Unlock()
	sort.SliceStable(matching, func(i, j int) bool {
		a, _ := RecordTimestamp(matching[i])
		b, _ := RecordTimestamp(matching[j])
		return a.Before(b)
	})

	limit := top
	if serverPage > 0 && (limit == 0 || serverPage < limit) {
		limit = serverPage
	}
	if skip > len(matching) {
		skip = len(matching)
	}
	end := len(matching)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	body := map[string]any{"value": matching[skip:end]}
	if serverPage > 0 && end < len(matching) {
		next := url.Values{}
		next.Set("$filter", q.Get("$filter"))
		next.Set("$top", q.Get("$top"))
		next.Set("$skip", strconv.Itoa(end))
		body["@odata.nextLink"] = resource + "?" + next.Encode()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// touch moves the record with key to ts, as an upstream edit would.
func (f *fakeMLS) touch(resource, key string, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keyField := keyFieldFor(resource)
	for _, rec := range f.data[resource] {
		if rec[keyField] == key {
			rec["ModificationTimestamp"] = ts.Format(time.RFC3339)
			rec["RFModificationTimestamp"] = ts.Format(time.RFC3339)
		}
	}
}

func (f *fakeMLS) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var baseTime = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

func keyFieldFor(resource string) string {
	cfg, _ := LookupResource(DefaultResources(), resource)
	return cfg.KeyField
}

// seed adds n records to resource with timestamps one minute apart starting
// one minute after baseTime.
func (f *fakeMLS) seed(resource string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = map[string][]mls.RawRecord{}
	}
	keyField := keyFieldFor(resource)
	start := len(f.data[resource])
	for i := start; i < start+n; i++ {
		f.data[resource] = append(f.data[resource], mls.RawRecord{
			keyField:                  fmt.Sprintf("%s-%04d", resource, i+1),
			"ModificationTimestamp":   baseTime.Add(time.Duration(i+1) * time.Minute).Format(time.RFC3339),
			"RFModificationTimestamp": baseTime.Add(time.Duration(i+1) * time.Minute).Format(time.RFC3339),
		})
	}
}

type syncEnv struct {
	store      *memStore
	mls        *fakeMLS
	tokenCalls *int32
	sleeps     *[]time.Duration
	tokens     *mls.TokenManager
	syncer     *ResourceSyncer
	orch       *Orchestrator
}

var testNow = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func newSyncEnv(t *testing.T, mutate func(*config.UpstreamConfig)) *syncEnv {
	t.Helper()
	var tokenCalls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(tokenSrv.Close)
	fake := &fakeMLS{}
	mlsSrv := httptest.NewServer(fake)
	t.Cleanup(mlsSrv.Close)

	cfg := config.UpstreamConfig{
		BaseURL:        mlsSrv.URL,
		TokenURL:       tokenSrv.URL,
		ClientID:       "client",
		ClientSecret:   "secret",
		APIKey:         "key",
		Timeout:        5 * time.Second,
		MaxRetries:     5,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  5 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	clock := func() time.Time { return testNow }
	tokens := mls.NewTokenManager(cfg, mls.WithTokenClock(clock))
	tr := mls.NewTransport(cfg, config.BreakerConfig{}, tokens, nil)
	var sleeps []time.Duration
	tr.Jitter = func(time.Duration) time.Duration { return 0 }
	tr.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	store := newMemStore()
	syncer := &ResourceSyncer{
		Store:    store,
		Source:   mls.NewClient(cfg, tr),
		PageSize: 200,
		MaxPages: 50,
		Lookback: 365 * 24 * time.Hour,
		Now:      clock,
	}
	seq := 0
	orch := &Orchestrator{
		Store:        store,
		Syncer:       syncer,
		Tokens:       tokens,
		LeaseEnabled: true,
		LeaseTTL:     15 * time.Minute,
		Now:          clock,
		NewID: func() string {
			seq++
			return fmt.Sprintf("run-%d", seq)
		},
	}
	return &syncEnv{
		store:      store,
		mls:        fake,
		tokenCalls: &tokenCalls,
		sleeps:     &sleeps,
		tokens:     tokens,
		syncer:     syncer,
		orch:       orch,
	}
}

func mustResource(t *testing.T, name string) ResourceConfig {
	t.Helper()
	cfg, ok := LookupResource(DefaultResources(), name)
	if !ok {
		t.Fatalf("resource %s not found", name)
	}
	return cfg
}

var errBoom = errors.New("boom")
