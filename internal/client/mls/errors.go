package mls

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfig marks errors caused by missing or invalid configuration. They
// are raised before any network I/O.
var ErrConfig = errors.New("mls: configuration error")

type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return ErrConfig.Error()
	}
	return fmt.Sprintf("mls config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// AuthError means the token endpoint refused the credentials, or the data
// API kept answering 401 after a fresh token.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	switch {
	case e.Status > 0:
		return fmt.Sprintf("mls auth error (%d): %s", e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("mls auth error: %v", e.Err)
	default:
		return "mls auth error"
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("mls rate limited (retry after %s)", e.RetryAfter)
	}
	return "mls rate limited"
}

// UpstreamError is a non-retryable response, or a server error that
// persisted through every retry.
type UpstreamError struct {
	Status int
	Body   string
	URL    string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("mls upstream error: %v", e.Err)
	}
	return fmt.Sprintf("mls upstream error (%d): %s", e.Status, truncate(e.Body, 512))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("mls retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
