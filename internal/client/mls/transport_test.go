package mls

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"mlssync/internal/config"
)

type fakeTokens struct {
	mu          sync.Mutex
	issued      int
	invalidated int
	current     string
}

func (f *fakeTokens) Token(context.Context) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == "" {
		f.issued++
		f.current = "token-" + string(rune('0'+f.issued))
	}
	return &oauth2.Token{AccessToken: f.current, TokenType: "Bearer"}, nil
}

func (f *fakeTokens) Invalidate(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	f.current = ""
}

type scriptedServer struct {
	mu       sync.Mutex
	statuses []int
	auth     []string
	header   http.Header
}

func (s *scriptedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	status := http.StatusOK
	if len(s.statuses) > 0 {
		status = s.statuses[0]
		if len(s.statuses) > 1 {
			s.statuses = s.statuses[1:]
		}
	}
	s.mu.Unlock()
	for k, v := range s.header {
		w.Header()[k] = v
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"value":[]}`))
}

func (s *scriptedServer) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.auth)
}

func newTestTransport(tokens TokenSource, base, max time.Duration) (*Transport, *[]time.Duration) {
	tr := NewTransport(config.UpstreamConfig{
		Timeout:        5 * time.Second,
		RetryBaseDelay: base,
		RetryMaxDelay:  max,
	}, config.BreakerConfig{}, tokens, nil)
	var sleeps []time.Duration
	tr.Jitter = func(time.Duration) time.Duration { return 0 }
	tr.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return tr, &sleeps
}

func TestFetchWithRetryBacksOffOnRateLimit(t *testing.T) {
	script := &scriptedServer{statuses: []int{429}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tr, sleeps := newTestTransport(&fakeTokens{}, 100*time.Millisecond, 10*time.Second)

	resp, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 3)
	if err != nil {
		t.Fatalf("expected last response, got error %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := script.requests(); got != 4 {
		t.Fatalf("requests = %d, want 4", got)
	}
	if len(*sleeps) != 3 {
		t.Fatalf("sleeps = %v, want 3", *sleeps)
	}
	for i := 1; i < len(*sleeps); i++ {
		if (*sleeps)[i] <= (*sleeps)[i-1] {
			t.Fatalf("delays not strictly increasing: %v", *sleeps)
		}
	}
}

func TestFetchWithRetryDelayIsCapped(t *testing.T) {
	script := &scriptedServer{statuses: []int{503}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tr, sleeps := newTestTransport(&fakeTokens{}, time.Second, 3*time.Second)

	if _, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 4); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", *sleeps, want)
		}
	}
}

func TestFetchWithRetryHonorsRetryAfter(t *testing.T) {
	script := &scriptedServer{statuses: []int{429, 200}, header: http.Header{"Retry-After": []string{"2"}}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tr, sleeps := newTestTransport(&fakeTokens{}, 100*time.Millisecond, 5*time.Second)

	resp, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 3)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected success, got %v %v", resp, err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 2*time.Second {
		t.Fatalf("sleeps = %v, want [2s]", *sleeps)
	}
}

func TestFetchWithRetryDoesNotRetryClientErrors(t *testing.T) {
	script := &scriptedServer{statuses: []int{400}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tr, sleeps := newTestTransport(&fakeTokens{}, 100*time.Millisecond, time.Second)

	resp, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest || script.requests() != 1 || len(*sleeps) != 0 {
		t.Fatalf("expected one unretried request, got status=%d requests=%d sleeps=%v", resp.StatusCode, script.requests(), *sleeps)
	}
}

func TestFetchWithRetryRefreshesTokenOnce(t *testing.T) {
	script := &scriptedServer{statuses: []int{401, 200}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tokens := &fakeTokens{}
	tr, sleeps := newTestTransport(tokens, 100*time.Millisecond, time.Second)

	resp, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 0)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected success after refresh, got %v %v", resp, err)
	}
	if tokens.invalidated != 1 || tokens.issued != 2 {
		t.Fatalf("invalidated=%d issued=%d, want 1/2", tokens.invalidated, tokens.issued)
	}
	if script.auth[0] == script.auth[1] || script.auth[1] != "Bearer token-2" {
		t.Fatalf("authorization not rewritten: %v", script.auth)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("401 recovery must not back off, slept %v", *sleeps)
	}
}

func TestFetchWithRetrySecond401IsTerminal(t *testing.T) {
	script := &scriptedServer{statuses: []int{401}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tokens := &fakeTokens{}
	tr, _ := newTestTransport(tokens, 100*time.Millisecond, time.Second)

	_, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 5)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if script.requests() != 2 || tokens.invalidated != 1 {
		t.Fatalf("requests=%d invalidated=%d, want 2/1", script.requests(), tokens.invalidated)
	}
}

func TestFetchWithRetry401AfterServerErrorRefreshesAgain(t *testing.T) {
	script := &scriptedServer{statuses: []int{401, 503, 401, 200}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tokens := &fakeTokens{}
	tr, sleeps := newTestTransport(tokens, 100*time.Millisecond, time.Second)

	resp, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 5)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected success, got %v %v", resp, err)
	}
	if script.requests() != 4 || tokens.invalidated != 2 {
		t.Fatalf("requests=%d invalidated=%d, want 4/2", script.requests(), tokens.invalidated)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != 100*time.Millisecond {
		t.Fatalf("sleeps = %v, want one 100ms backoff", *sleeps)
	}
}

func TestFetchWithRetryAlternating401IsBounded(t *testing.T) {
	script := &scriptedServer{statuses: []int{401, 503, 401, 503, 401, 503}}
	srv := httptest.NewServer(script)
	defer srv.Close()
	tokens := &fakeTokens{}
	tr, _ := newTestTransport(tokens, time.Millisecond, time.Millisecond)

	resp, err := tr.FetchWithRetry(context.Background(), srv.URL, nil, 2)
	if err != nil || resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected last 503 after budget, got %v %v", resp, err)
	}
	if script.requests() != 6 {
		t.Fatalf("requests = %d, want 6", script.requests())
	}
}

func TestFetchWithRetryNetworkErrorsExhaust(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	tr, sleeps := newTestTransport(&fakeTokens{}, 10*time.Millisecond, time.Second)

	_, err := tr.FetchWithRetry(context.Background(), url, nil, 2)
	var exhausted *ExhaustedRetriesError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedRetriesError, got %v", err)
	}
	if exhausted.Attempts != 3 || len(*sleeps) != 2 {
		t.Fatalf("attempts=%d sleeps=%v", exhausted.Attempts, *sleeps)
	}
}

func TestFetchWithRetrySendsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer srv.Close()
	tr, _ := newTestTransport(&fakeTokens{}, 10*time.Millisecond, time.Second)
	c := NewClient(config.UpstreamConfig{BaseURL: srv.URL, APIKey: "k", Origin: "https://site.example"}, tr)

	if _, err := c.FetchPage(context.Background(), srv.URL+"/Property"); err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if got.Get("X-Api-Key") != "k" || got.Get("Origin") != "https://site.example" || got.Get("Authorization") != "Bearer token-1" {
		t.Fatalf("unexpected headers: %v", got)
	}
}
