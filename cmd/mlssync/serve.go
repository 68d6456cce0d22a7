package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	cronrunner "mlssync/internal/cron"
	"mlssync/internal/handler"
	"mlssync/internal/paas"

	_ "mlssync/docs"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := a.logger

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.RequestIDMiddleware())
	engine.Use(corsMiddleware())
	engine.Use(paas.RequireBearerMiddleware(cfg.Server))
	engine.Use(paas.InjectClientMiddleware(a.paas))
	engine.Use(paas.WriteAuditMiddleware(a.paas, log))

	(&handler.HealthHandler{DB: a.db.Gorm, Upstream: a.tokens}).Register(engine)
	(&handler.SyncHandler{Runner: a.orch, Store: a.store, Logger: log}).Register(engine)
	(&handler.ListingsHandler{Service: a.queries, Logger: log}).Register(engine)
	(&handler.SettingsHandler{Repo: a.store, Settings: a.settings}).Register(engine)
	paas.RegisterDocs(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	baseCtx := ctx
	if a.paas != nil {
		baseCtx = paas.WithClient(ctx, a.paas)
	}
	if cfg.Cron.Enabled {
		runner := cronrunner.New(log, baseCtx)
		job := cronrunner.SyncAllJob(a.orch, a.settings, cfg.Sync.Resources, log)
		if _, err := runner.Add("sync_all", cfg.Cron.SyncAll, job); err != nil {
			log.Warn("cron register sync_all failed", zap.String("spec", cfg.Cron.SyncAll), zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case serveErr = <-errCh:
		log.Error("server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return serveErr
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
