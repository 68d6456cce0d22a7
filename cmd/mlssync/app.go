package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mlssync/internal/client/mls"
	"mlssync/internal/config"
	"mlssync/internal/db"
	"mlssync/internal/logger"
	"mlssync/internal/paas"
	gormrepository "mlssync/internal/repository/gorm"
	"mlssync/internal/service"
)

// app holds everything the commands share once config, logging and the
// database are up.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *db.DB
	store    *gormrepository.Store
	tokens   *mls.TokenManager
	settings *service.SystemSettingsService
	queries  *service.ListingQueryService
	orch     *service.Orchestrator
	paas     *paas.Client
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath, opts.envOnly, opts.envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	conn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.SetTimezone(conn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(conn); err != nil {
		_ = db.Close(conn)
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	store := gormrepository.New(conn.Gorm)

	settings := &service.SystemSettingsService{Repo: store}
	if err := settings.EnsureDefaultSwitches(ctx); err != nil {
		log.Warn("init default feature switches failed", zap.Error(err))
	}

	tokenOpts := []mls.TokenOption{mls.WithTokenLogger(log)}
	if cfg.Sync.PersistToken {
		tokenStore := mls.NewDBTokenStore(store, "mls")
		tokenStore.Cipher = mls.NewTokenCipher(cfg.Sync.TokenKey, cfg.Sync.TokenPrevKey)
		tokenOpts = append(tokenOpts, mls.WithTokenStore(tokenStore))
	}
	tokens := mls.NewTokenManager(cfg.Upstream, tokenOpts...)
	transport := mls.NewTransport(cfg.Upstream, cfg.Breaker, tokens, log)
	client := mls.NewClient(cfg.Upstream, transport)

	syncer := &service.ResourceSyncer{
		Store:            store,
		Source:           client,
		Logger:           log,
		PageSize:         cfg.Sync.PageSize,
		MaxPages:         cfg.Sync.MaxPages,
		Lookback:         cfg.Sync.Lookback,
		WatermarkOverlap: cfg.Sync.WatermarkOverlap,
	}
	paasClient := initPaaSClient(ctx, cfg.PaaS, log)
	orch := &service.Orchestrator{
		Store:        store,
		Syncer:       syncer,
		Tokens:       tokens,
		Logger:       log,
		Defaults:     cfg.Sync.Resources,
		LeaseEnabled: cfg.Sync.LeaseEnabled,
		LeaseTTL:     cfg.Sync.LeaseTTL,
	}
	if paasClient != nil {
		orch.Forwarder = paasClient
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		db:       conn,
		store:    store,
		tokens:   tokens,
		settings: settings,
		queries:  &service.ListingQueryService{Repo: store},
		orch:     orch,
		paas:     paasClient,
	}, nil
}

func (a *app) Close() {
	_ = db.Close(a.db)
	_ = a.logger.Sync()
}

func initPaaSClient(ctx context.Context, cfg config.PaaSConfig, log *zap.Logger) *paas.Client {
	p := paas.NewClient(cfg)
	if p == nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.Login(lctx); err != nil {
		log.Warn("paas login failed (run forwarding disabled)", zap.Error(err))
		return nil
	}
	log.Info("paas login ok")
	return p
}
