package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"mlssync/internal/metrics"
	"mlssync/internal/models"
	"mlssync/internal/repository"
)

const (
	TriggerManual = "manual"
	TriggerCron   = "cron"
	TriggerCLI    = "cli"
)

// TokenProvider is the part of the token manager the orchestrator needs.
type TokenProvider interface {
	Validate() error
	Token(ctx context.Context) (*oauth2.Token, error)
}

// RunForwarder ships a finished audit row somewhere else. Failures are
// logged and otherwise ignored.
type RunForwarder interface {
	ForwardSyncRun(ctx context.Context, run *models.SyncRun) error
}

// RunReport is the outcome of one orchestrated invocation.
type RunReport struct {
	RunID      string                   `json:"runId"`
	Trigger    string                   `json:"trigger"`
	OK         bool                     `json:"ok"`
	Error      string                   `json:"error,omitempty"`
	StartedAt  time.Time                `json:"startedAt"`
	FinishedAt time.Time                `json:"finishedAt"`
	DurationMs int64                    `json:"durationMs"`
	Resources  []string                 `json:"resources"`
	Results    map[string]SyncRunResult `json:"results"`
}

// Orchestrator runs the requested resources one after another under a
// single token and writes one audit row per invocation.
type Orchestrator struct {
	Store     repository.SyncRepository
	Syncer    *ResourceSyncer
	Tokens    TokenProvider
	Forwarder RunForwarder
	Logger    *zap.Logger

	// Resources is the registry names are resolved against. Defaults
	// enumerates what an empty request runs.
	Resources []ResourceConfig
	Defaults  []string

	LeaseEnabled bool
	LeaseTTL     time.Duration

	Now   func() time.Time
	NewID func() string
}

// Resolve maps requested names to configs, dropping duplicates. An empty
// request resolves to the defaults.
func (o *Orchestrator) Resolve(names []string) ([]ResourceConfig, error) {
	registry := o.Resources
	if len(registry) == 0 {
		registry = DefaultResources()
	}
	if len(names) == 0 {
		names = o.Defaults
	}
	if len(names) == 0 {
		for _, r := range registry {
			names = append(names, r.Name)
		}
	}
	out := make([]ResourceConfig, 0, len(names))
	seen := map[string]struct{}{}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		cfg, ok := LookupResource(registry, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
		}
		if _, dup := seen[cfg.Name]; dup {
			continue
		}
		seen[cfg.Name] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

// RunSync syncs each named resource in turn. One resource failing never
// stops the others; failures are reported in the per-resource results. The
// returned error is only set when the request itself is invalid.
func (o *Orchestrator) RunSync(ctx context.Context, trigger string, names []string) (RunReport, error) {
	resources, err := o.Resolve(names)
	if err != nil {
		return RunReport{}, err
	}
	if strings.TrimSpace(trigger) == "" {
		trigger = TriggerManual
	}
	start := o.now()
	report := RunReport{
		RunID:     o.newID(),
		Trigger:   trigger,
		StartedAt: start,
		Resources: make([]string, 0, len(resources)),
		Results:   make(map[string]SyncRunResult, len(resources)),
	}
	for _, r := range resources {
		report.Resources = append(report.Resources, r.Name)
	}
	log := o.logger().With(zap.String("run_id", report.RunID), zap.String("trigger", trigger))
	log.Info("sync run started", zap.Strings("resources", report.Resources))

	if tokenErr := o.obtainToken(ctx); tokenErr != nil {
		log.Error("sync run aborted before any resource", zap.Error(tokenErr))
		for _, r := range resources {
			report.Results[r.Name] = failedResult(r.Name, tokenErr)
			if o.Store != nil {
				if err := o.Store.MarkSyncCursorFailed(context.WithoutCancel(ctx), r.Name, start, tokenErr.Error()); err != nil {
					log.Warn("record cursor failure", zap.String("resource", r.Name), zap.Error(err))
				}
			}
		}
	} else {
		for _, r := range resources {
			report.Results[r.Name] = o.runOne(ctx, report.RunID, r)
		}
	}

	o.finish(ctx, &report)
	return report, nil
}

func (o *Orchestrator) obtainToken(ctx context.Context) error {
	if o.Tokens == nil {
		return nil
	}
	if err := o.Tokens.Validate(); err != nil {
		return err
	}
	_, err := o.Tokens.Token(ctx)
	return err
}

func (o *Orchestrator) runOne(ctx context.Context, runID string, cfg ResourceConfig) SyncRunResult {
	if err := ctx.Err(); err != nil {
		return failedResult(cfg.Name, err)
	}
	if o.Syncer == nil {
		return failedResult(cfg.Name, errors.New("resource syncer is nil"))
	}
	var renew func(context.Context) error
	if o.LeaseEnabled && o.Store != nil {
		acquired, err := o.Store.AcquireSyncLease(ctx, cfg.Name, runID, o.now(), o.LeaseTTL)
		if err != nil {
			return failedResult(cfg.Name, &PersistenceError{Op: "acquire lease", Err: err})
		}
		if !acquired {
			o.logger().Info("resource skipped, lease held elsewhere", zap.String("resource", cfg.Name))
			res := failedResult(cfg.Name, ErrLeaseHeld)
			res.Outcome = OutcomeSkipped
			return res
		}
		defer func() {
			if err := o.Store.ReleaseSyncLease(context.WithoutCancel(ctx), cfg.Name, runID); err != nil {
				o.logger().Warn("release lease failed", zap.String("resource", cfg.Name), zap.Error(err))
			}
		}()
		// The lease is extended after every stored page, so a long drain
		// keeps it for as long as it makes progress.
		renew = func(ctx context.Context) error {
			held, err := o.Store.AcquireSyncLease(ctx, cfg.Name, runID, o.now(), o.LeaseTTL)
			if err != nil {
				return &PersistenceError{Op: "renew lease", Err: err}
			}
			if !held {
				return fmt.Errorf("%w: lost during run", ErrLeaseHeld)
			}
			return nil
		}
	}
	res, _ := o.Syncer.syncResource(ctx, cfg, renew)
	return res
}

func (o *Orchestrator) finish(ctx context.Context, report *RunReport) {
	finished := o.now()
	report.FinishedAt = finished
	report.DurationMs = finished.Sub(report.StartedAt).Milliseconds()
	report.OK = true
	failures := make([]string, 0)
	for _, name := range report.Resources {
		res := report.Results[name]
		if !res.OK {
			report.OK = false
			failures = append(failures, name+": "+res.Error)
		}
	}
	if len(failures) > 0 {
		report.Error = strings.Join(failures, "; ")
	}

	run := &models.SyncRun{
		RunID:       report.RunID,
		Trigger:     report.Trigger,
		Resources:   strings.Join(report.Resources, ","),
		StartedAt:   report.StartedAt,
		FinishedAt:  finished,
		DurationMs:  report.DurationMs,
		OK:          report.OK,
		ResultsJSON: statsJSON(report.Results),
	}
	if report.Error != "" {
		msg := report.Error
		run.Error = &msg
	}

	auditCtx := context.WithoutCancel(ctx)
	log := o.logger().With(zap.String("run_id", report.RunID))
	if o.Store != nil {
		if err := o.Store.InsertSyncRun(auditCtx, run); err != nil {
			log.Error("write sync run audit failed", zap.Error(err))
		}
	}
	if o.Forwarder != nil {
		fctx, cancel := context.WithTimeout(auditCtx, 2*time.Second)
		if err := o.Forwarder.ForwardSyncRun(fctx, run); err != nil {
			log.Debug("forward sync run failed", zap.Error(err))
		}
		cancel()
	}
	metrics.RecordOrchestratedRun(report.Trigger, report.OK)
	log.Info("sync run finished",
		zap.Bool("ok", report.OK),
		zap.Int64("duration_ms", report.DurationMs),
		zap.String("error", report.Error),
	)
}

func failedResult(resource string, err error) SyncRunResult {
	return SyncRunResult{
		OK:        false,
		Resource:  resource,
		Outcome:   OutcomeFailed,
		Error:     err.Error(),
		ErrorKind: ErrorKind(err),
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
