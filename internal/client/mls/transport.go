package mls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"mlssync/internal/config"
	"mlssync/internal/metrics"
)

const breakerName = "mls-api"

// TokenSource is the part of TokenManager the transport depends on.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Invalidate(ctx context.Context)
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	Attempts   int
}

// errRetryableStatus tells the breaker a 429/5xx response counts as a failure.
var errRetryableStatus = errors.New("retryable upstream status")

// Transport sends authenticated GET requests to the MLS API, refreshing the
// token once on 401 and backing off on 429, 5xx and network errors.
type Transport struct {
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*Response]
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger

	// Jitter returns a random duration in [0, max). Sleep blocks for d or
	// until ctx is done. Both are replaced in tests.
	Jitter func(max time.Duration) time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

func NewTransport(cfg config.UpstreamConfig, bcfg config.BreakerConfig, tokens TokenSource, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		baseDelay:  cfg.RetryBaseDelay,
		maxDelay:   cfg.RetryMaxDelay,
		logger:     logger,
		Jitter:     defaultJitter,
		Sleep:      sleepContext,
	}
	if t.baseDelay <= 0 {
		t.baseDelay = 500 * time.Millisecond
	}
	if t.maxDelay <= 0 {
		t.maxDelay = 30 * time.Second
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if bcfg.Enabled {
		t.breaker = newBreaker(bcfg, logger)
	}
	return t
}

// SetHTTPClient swaps the client used for data calls.
func (t *Transport) SetHTTPClient(c *http.Client) {
	if c != nil {
		t.httpClient = c
	}
}

func newBreaker(bcfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[*Response] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	minRequests := bcfg.MinRequests
	ratio := bcfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: bcfg.MaxRequests,
		Interval:    bcfg.Interval,
		Timeout:     bcfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

// FetchWithRetry performs a GET on rawURL. 2xx and 4xx other than 401/429
// return immediately. A 401 triggers exactly one token refresh and retry; a
// second 401 is an AuthError. 429 and 5xx are retried up to maxRetries times
// and the last response is returned. Network errors follow the same backoff
// and end in an ExhaustedRetriesError.
func (t *Transport) FetchWithRetry(ctx context.Context, rawURL string, headers http.Header, maxRetries int) (*Response, error) {
	if t.tokens == nil {
		return nil, &ConfigError{Err: errors.New("transport has no token source")}
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	retries := 0
	refreshed := false
	requests := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		tok, err := t.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		requests++
		resp, err := t.send(ctx, rawURL, headers, tok)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, &UpstreamError{URL: rawURL, Err: err}
			}
			if retries >= maxRetries {
				return nil, &ExhaustedRetriesError{Attempts: requests, Err: err}
			}
			retries++
			refreshed = false
			metrics.UpstreamRetries.WithLabelValues("network").Inc()
			if err := t.backoff(ctx, retries, 0, "network", zap.Error(err)); err != nil {
				return nil, err
			}
			continue
		}
		resp.Attempts = requests

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return nil, &AuthError{Status: resp.StatusCode, Body: truncate(string(resp.Body), 512)}
			}
			refreshed = true
			t.logger.Info("upstream returned 401, refreshing token", zap.String("url", rawURL))
			t.tokens.Invalidate(ctx)
			continue
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if retries >= maxRetries {
				return resp, nil
			}
			retries++
			// Only back-to-back 401s are terminal. Every reset spends retry
			// budget, so the loop stays bounded.
			refreshed = false
			reason := "server_error"
			if resp.StatusCode == http.StatusTooManyRequests {
				reason = "rate_limited"
			}
			metrics.UpstreamRetries.WithLabelValues(reason).Inc()
			if err := t.backoff(ctx, retries, retryAfter(resp.Header), reason, zap.Int("status", resp.StatusCode)); err != nil {
				return nil, err
			}
			continue
		default:
			return resp, nil
		}
	}
}

// Delay returns the backoff before retry number attempt (1-based):
// min(maxDelay, baseDelay*2^(attempt-1) + jitter), raised to hint when the
// server asked for longer, but never beyond maxDelay.
func (t *Transport) Delay(attempt int, hint time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := t.maxDelay
	if shift := attempt - 1; shift < 31 {
		if d := t.baseDelay << shift; d > 0 && d < t.maxDelay {
			delay = d
		}
	}
	if delay < t.maxDelay && t.Jitter != nil {
		delay += t.Jitter(t.baseDelay)
	}
	if hint > delay {
		delay = hint
	}
	if delay > t.maxDelay {
		delay = t.maxDelay
	}
	return delay
}

func (t *Transport) backoff(ctx context.Context, attempt int, hint time.Duration, reason string, field zap.Field) error {
	delay := t.Delay(attempt, hint)
	t.logger.Warn("upstream retry",
		zap.String("reason", reason),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		field,
	)
	sleep := t.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, delay)
}

func (t *Transport) send(ctx context.Context, rawURL string, headers http.Header, tok *oauth2.Token) (*Response, error) {
	if t.breaker == nil {
		return t.do(ctx, rawURL, headers, tok)
	}
	resp, err := t.breaker.Execute(func() (*Response, error) {
		r, err := t.do(ctx, rawURL, headers, tok)
		if err != nil {
			return nil, err
		}
		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			return r, errRetryableStatus
		}
		return r, nil
	})
	if errors.Is(err, errRetryableStatus) {
		return resp, nil
	}
	return resp, err
}

func (t *Transport) do(ctx context.Context, rawURL string, headers http.Header, tok *oauth2.Token) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	tok.SetAuthHeader(req)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(0, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	metrics.RecordUpstreamRequest(resp.StatusCode, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		URL:        rawURL,
	}, nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header) time.Duration {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func defaultJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
