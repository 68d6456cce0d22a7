package service

import (
	"context"
	"errors"
	"fmt"

	"mlssync/internal/client/mls"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrLeaseHeld       = errors.New("resource is being synced by another run")
	errMissingKey      = errors.New("record has no natural key")
)

// PersistenceError wraps a failed read or write against the store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	KindConfig           = "config"
	KindAuth             = "auth"
	KindRateLimited      = "rate_limited"
	KindUpstream         = "upstream"
	KindPersistence      = "persistence"
	KindExhaustedRetries = "exhausted_retries"
	KindLeaseHeld        = "lease_held"
	KindCanceled         = "canceled"
	KindUnknown          = "unknown"
)

// ErrorKind maps err to a stable label for results, audit rows and metrics.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		authErr     *mls.AuthError
		exhausted   *mls.ExhaustedRetriesError
		limited     *mls.RateLimitedError
		upstream    *mls.UpstreamError
		persistence *PersistenceError
	)
	switch {
	case errors.Is(err, mls.ErrConfig):
		return KindConfig
	case errors.Is(err, ErrLeaseHeld):
		return KindLeaseHeld
	case errors.As(err, &persistence):
		return KindPersistence
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &exhausted):
		return KindExhaustedRetries
	case errors.As(err, &limited):
		return KindRateLimited
	case errors.As(err, &upstream):
		return KindUpstream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
