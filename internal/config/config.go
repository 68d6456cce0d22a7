package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Sync     SyncConfig     `mapstructure:"sync"`
	PaaS     PaaSConfig     `mapstructure:"paas"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr       string `mapstructure:"http_addr"`
	AuthDisabled   bool   `mapstructure:"auth_disabled"`
	RequireGateway bool   `mapstructure:"require_gateway"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	SyncAll string `mapstructure:"sync_all"`
}

// UpstreamConfig describes the MLS provider: credentials, endpoints and the
// retry budget shared by every data call.
type UpstreamConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	TokenURL          string        `mapstructure:"token_url"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	APIKey            string        `mapstructure:"api_key"`
	Origin            string        `mapstructure:"origin"`
	Scope             string        `mapstructure:"scope"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

type SyncConfig struct {
	PageSize         int           `mapstructure:"page_size"`
	MaxPages         int           `mapstructure:"max_pages"`
	Lookback         time.Duration `mapstructure:"lookback"`
	WatermarkOverlap time.Duration `mapstructure:"watermark_overlap"`
	LeaseEnabled     bool          `mapstructure:"lease_enabled"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	PersistToken     bool          `mapstructure:"persist_token"`
	TokenKey         string        `mapstructure:"token_key"`
	TokenPrevKey     string        `mapstructure:"token_prev_key"`
	Resources        []string      `mapstructure:"resources"`
}

type PaaSConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Agent   string `mapstructure:"agent"`
}

// ErrMissingCredentials is returned by Validate when the upstream section
// cannot authenticate.
var ErrMissingCredentials = errors.New("missing upstream credentials")

// Validate reports the credential fields that are empty.
func (c UpstreamConfig) Validate() error {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base_url")
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		missing = append(missing, "token_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Load reads .env files (if any), then the YAML file at path unless envOnly
// is set, with MLSSYNC_* environment variables taking precedence.
func Load(path string, envOnly bool, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MLSSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.auth_disabled", false)
	v.SetDefault("server.require_gateway", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sync_all", "@every 15m")

	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.token_url", "")
	v.SetDefault("upstream.client_id", "")
	v.SetDefault("upstream.client_secret", "")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.origin", "")
	v.SetDefault("upstream.scope", "api")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.max_retries", 5)
	v.SetDefault("upstream.retry_base_delay", "500ms")
	v.SetDefault("upstream.retry_max_delay", "30s")
	v.SetDefault("upstream.requests_per_second", 4.0)
	v.SetDefault("upstream.burst", 4)

	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "1m")
	v.SetDefault("breaker.timeout", "2m")
	v.SetDefault("breaker.min_requests", 10)
	v.SetDefault("breaker.failure_ratio", 0.6)

	v.SetDefault("sync.page_size", 200)
	v.SetDefault("sync.max_pages", 50)
	v.SetDefault("sync.lookback", "8760h")
	v.SetDefault("sync.watermark_overlap", "0s")
	v.SetDefault("sync.lease_enabled", true)
	v.SetDefault("sync.lease_ttl", "15m")
	v.SetDefault("sync.persist_token", true)
	v.SetDefault("sync.token_key", "")
	v.SetDefault("sync.token_prev_key", "")
	v.SetDefault("sync.resources", []string{"Property", "Member", "Office", "OpenHouse"})

	v.SetDefault("paas.base_url", "")
	v.SetDefault("paas.api_key", "")
	v.SetDefault("paas.agent", "mls-sync-service")
}
