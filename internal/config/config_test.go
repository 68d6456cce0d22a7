package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("upstream:\n  base_url: https://mls.example.com/odata\n  max_retries: 3\nsync:\n  page_size: 100\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path, false, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Upstream.BaseURL != "https://mls.example.com/odata" || cfg.Upstream.MaxRetries != 3 {
		t.Fatalf("upstream = %+v", cfg.Upstream)
	}
	if cfg.Sync.PageSize != 100 || cfg.Sync.MaxPages != 50 {
		t.Fatalf("sync = %+v", cfg.Sync)
	}
	if cfg.Sync.Lookback != 365*24*time.Hour || cfg.Upstream.RetryBaseDelay != 500*time.Millisecond {
		t.Fatalf("durations = %s %s", cfg.Sync.Lookback, cfg.Upstream.RetryBaseDelay)
	}
	if len(cfg.Sync.Resources) != 4 || cfg.Cron.SyncAll != "@every 15m" {
		t.Fatalf("defaults = %+v %+v", cfg.Sync.Resources, cfg.Cron)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("MLSSYNC_UPSTREAM_CLIENT_SECRET=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MLSSYNC_UPSTREAM_CLIENT_ID", "from-env")
	t.Setenv("MLSSYNC_SYNC_MAX_PAGES", "7")
	t.Cleanup(func() { _ = os.Unsetenv("MLSSYNC_UPSTREAM_CLIENT_SECRET") })

	cfg, err := Load(filepath.Join(dir, "unused.yaml"), true, envFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Upstream.ClientID != "from-env" || cfg.Upstream.ClientSecret != "from-dotenv" {
		t.Fatalf("credentials = %q %q", cfg.Upstream.ClientID, cfg.Upstream.ClientSecret)
	}
	if cfg.Sync.MaxPages != 7 {
		t.Fatalf("max pages = %d", cfg.Sync.MaxPages)
	}
}

func TestUpstreamValidate(t *testing.T) {
	err := UpstreamConfig{ClientID: "id", BaseURL: "https://x"}.Validate()
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	for _, field := range []string{"client_secret", "api_key", "token_url"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("%q not reported in %q", field, err)
		}
	}
	ok := UpstreamConfig{ClientID: "id", ClientSecret: "s", APIKey: "k", BaseURL: "https://x", TokenURL: "https://x/token"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
