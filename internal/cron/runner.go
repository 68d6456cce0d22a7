package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules jobs against a base context that is cancelled on
// shutdown. A job still running when its next tick fires is skipped.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under name. spec accepts six-field expressions and
// descriptors such as "@every 15m".
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		start := time.Now()
		r.logger.Debug("cron job started", zap.String("job", name))
		job(r.baseCtx)
		r.logger.Debug("cron job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	})
}

func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}
