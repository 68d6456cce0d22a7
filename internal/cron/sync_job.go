package cronrunner

import (
	"context"

	"go.uber.org/zap"

	"mlssync/internal/service"
)

type SyncRunner interface {
	RunSync(ctx context.Context, trigger string, names []string) (service.RunReport, error)
}

// SyncAllJob runs the configured resources whose feature switch is on. The
// whole job is gated by feature.sync.cron.
func SyncAllJob(runner SyncRunner, settings *service.SystemSettingsService, resources []string, logger *zap.Logger) func(context.Context) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(resources) == 0 {
		for _, r := range service.DefaultResources() {
			resources = append(resources, r.Name)
		}
	}
	return func(ctx context.Context) {
		if !settings.IsEnabled(ctx, service.FeatureSyncCron, true) {
			logger.Debug("scheduled sync disabled")
			return
		}
		names := settings.EnabledResources(ctx, resources)
		if len(names) == 0 {
			logger.Info("scheduled sync skipped, every resource switched off")
			return
		}
		report, err := runner.RunSync(ctx, service.TriggerCron, names)
		if err != nil {
			logger.Error("scheduled sync rejected", zap.Error(err))
			return
		}
		if !report.OK {
			logger.Warn("scheduled sync finished with failures",
				zap.String("run_id", report.RunID),
				zap.String("error", report.Error),
			)
		}
	}
}
