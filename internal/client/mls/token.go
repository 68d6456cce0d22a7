package mls

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mlssync/internal/config"
	"mlssync/internal/metrics"
)

const (
	defaultTokenSkew     = 30 * time.Second
	defaultTokenLifetime = time.Hour
)

// TokenStore persists a token across process restarts. Implementations must
// be safe to call from one goroutine at a time; TokenManager serializes access.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
	Clear(ctx context.Context) error
}

// TokenManager obtains and caches the client-credentials bearer token for
// the MLS API. One instance is shared by every caller in the process.
type TokenManager struct {
	cfg        clientcredentials.Config
	configErr  error
	httpClient *http.Client
	store      TokenStore
	logger     *zap.Logger
	now        func() time.Time
	skew       time.Duration

	mu    sync.Mutex
	token *oauth2.Token
}

type TokenOption func(*TokenManager)

func WithTokenStore(store TokenStore) TokenOption {
	return func(m *TokenManager) { m.store = store }
}

func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(m *TokenManager) {
		if c != nil {
			m.httpClient = c
		}
	}
}

func WithTokenLogger(logger *zap.Logger) TokenOption {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewTokenManager(cfg config.UpstreamConfig, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		cfg: clientcredentials.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			TokenURL:     strings.TrimSpace(cfg.TokenURL),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
		now:        time.Now,
		skew:       defaultTokenSkew,
	}
	if scope := strings.TrimSpace(cfg.Scope); scope != "" {
		m.cfg.Scopes = []string{scope}
	}
	if err := cfg.Validate(); err != nil {
		m.configErr = &ConfigError{Err: err}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validate reports missing credentials without touching the network.
func (m *TokenManager) Validate() error {
	if m == nil {
		return &ConfigError{Err: errors.New("token manager is nil")}
	}
	return m.configErr
}

// Token returns the cached token while it is still valid, then tries the
// store, and finally requests a new one from the token endpoint.
func (m *TokenManager) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.usable(m.token, now) {
		return m.token, nil
	}
	if m.store != nil {
		stored, err := m.store.Load(ctx)
		if err != nil {
			m.logger.Warn("load stored token failed", zap.Error(err))
		} else if m.usable(stored, now) {
			m.token = stored
			return stored, nil
		}
	}

	tok, err := m.fetch(ctx, now)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	m.token = tok
	if m.store != nil {
		if err := m.store.Save(ctx, tok); err != nil {
			m.logger.Warn("persist token failed", zap.Error(err))
		}
	}
	m.logger.Debug("token obtained", zap.Time("expires_at", tok.Expiry))
	return tok, nil
}

// Invalidate drops the cached and stored token so the next Token call
// requests a fresh one.
func (m *TokenManager) Invalidate(ctx context.Context) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	if m.store != nil {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("clear stored token failed", zap.Error(err))
		}
	}
}

func (m *TokenManager) usable(tok *oauth2.Token, now time.Time) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return false
	}
	return now.Add(m.skew).Before(tok.Expiry)
}

func (m *TokenManager) fetch(ctx context.Context, now time.Time) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := m.cfg.Token(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, &AuthError{Status: re.Response.StatusCode, Body: string(re.Body), Err: err}
		}
		return nil, &AuthError{Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &AuthError{Err: errors.New("token endpoint returned an empty access token")}
	}

	// The library stamps Expiry with the wall clock; rebase the reported
	// lifetime onto the manager's clock.
	lifetime := defaultTokenLifetime
	if tok.ExpiresIn > 0 {
		lifetime = time.Duration(tok.ExpiresIn) * time.Second
	} else if !tok.Expiry.IsZero() {
		lifetime = time.Until(tok.Expiry)
	}
	out := &oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      now.Add(lifetime),
		ExpiresIn:   int64(lifetime / time.Second),
	}
	return out, nil
}
