package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"mlssync/internal/client/mls"
	"mlssync/internal/metrics"
	"mlssync/internal/models"
	"mlssync/internal/repository"
)

const (
	OutcomeDrained = "drained"
	OutcomeCeiling = "ceiling"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"

	defaultPageSize = 200
	defaultMaxPages = 50
	defaultLookback = 365 * 24 * time.Hour
)

// PageSource is the upstream side of a resource run.
type PageSource interface {
	CollectionURL(q mls.Query) string
	ResolveNextLink(link string) (string, error)
	FetchPage(ctx context.Context, pageURL string) (*mls.Page, error)
}

// SyncRunResult is what one resource run reports.
type SyncRunResult struct {
	OK            bool       `json:"ok"`
	Resource      string     `json:"resource"`
	Pages         int        `json:"pages"`
	Fetched       int        `json:"fetched"`
	Upserted      int        `json:"upserted"`
	Skipped       int        `json:"skipped"`
	DurationMs    int64      `json:"durationMs"`
	LastWatermark *time.Time `json:"lastWatermark,omitempty"`
	Outcome       string     `json:"outcome"`
	Error         string     `json:"error,omitempty"`
	ErrorKind     string     `json:"errorKind,omitempty"`
}

// ResourceSyncer drains one resource from its watermark and merges the
// pages into the target table. The cursor only moves after the whole run
// succeeded.
type ResourceSyncer struct {
	Store  repository.SyncRepository
	Source PageSource
	Logger *zap.Logger

	PageSize  int
	MaxPages  int
	BatchSize int
	// Lookback bounds the first run of a resource without a cursor.
	Lookback time.Duration
	// WatermarkOverlap re-reads this much history before the stored
	// watermark. Zero keeps the strict greater-than filter.
	WatermarkOverlap time.Duration

	Now func() time.Time
}

func (s *ResourceSyncer) SyncResource(ctx context.Context, cfg ResourceConfig) (SyncRunResult, error) {
	return s.syncResource(ctx, cfg, nil)
}

// syncResource runs afterPage once every page is stored; an error from it
// aborts the run like any other mid-loop failure.
func (s *ResourceSyncer) syncResource(ctx context.Context, cfg ResourceConfig, afterPage func(context.Context) error) (SyncRunResult, error) {
	start := s.now()
	result := SyncRunResult{Resource: cfg.Name}
	if s.Store == nil || s.Source == nil {
		return s.fail(ctx, cfg, start, result, &mls.ConfigError{Err: errors.New("sync store or upstream source is nil")})
	}
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := s.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	lookback := s.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}

	cursor, err := s.Store.GetSyncCursor(ctx, cfg.Name)
	if err != nil {
		return s.fail(ctx, cfg, start, result, &PersistenceError{Op: "read cursor", Err: err})
	}
	from := start.Add(-lookback).Truncate(time.Second)
	if cursor != nil && cursor.LastModifiedWatermark != nil && !cursor.LastModifiedWatermark.IsZero() {
		from = cursor.LastModifiedWatermark.UTC()
	}
	watermark := from
	if s.WatermarkOverlap > 0 {
		from = from.Add(-s.WatermarkOverlap)
	}

	// Pages are keyed on the newest timestamp consumed so far, never on an
	// offset into a filter that the upstream may reorder mid-run.
	pageQuery := func(after time.Time) string {
		return s.Source.CollectionURL(mls.Query{
			Resource: cfg.Endpoint,
			Filter:   fmt.Sprintf("%s gt %s", timestampField, mls.FormatTimestamp(after)),
			OrderBy:  timestampField + " asc",
			Top:      pageSize,
			Select:   cfg.Select(),
		})
	}
	pageURL := pageQuery(from)
	keyset := from
	target := cfg.Target(s.BatchSize)
	outcome := OutcomeDrained

	for {
		if result.Pages >= maxPages {
			outcome = OutcomeCeiling
			s.logger().Info("page ceiling reached",
				zap.String("resource", cfg.Name),
				zap.Int("pages", result.Pages),
			)
			break
		}
		page, err := s.Source.FetchPage(ctx, pageURL)
		if err != nil {
			return s.fail(ctx, cfg, start, result, err)
		}
		if len(page.Records) == 0 {
			break
		}
		result.Pages++
		result.Fetched += len(page.Records)

		rows := make([]map[string]any, 0, len(page.Records))
		prevKeyset := keyset
		for _, raw := range page.Records {
			ts, ok := RecordTimestamp(raw)
			if ok && ts.After(watermark) {
				watermark = ts
			}
			if ok && ts.After(keyset) {
				keyset = ts
			}
			row, err := cfg.Transform(raw)
			if err != nil {
				result.Skipped++
				s.logger().Debug("record skipped", zap.String("resource", cfg.Name), zap.Error(err))
				continue
			}
			row[firstSeenColumn] = start
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			n, err := s.Store.UpsertRecords(ctx, target, rows)
			if err != nil {
				return s.fail(ctx, cfg, start, result, &PersistenceError{Op: "upsert " + cfg.Table, Err: err})
			}
			result.Upserted += int(n)
		}
		if afterPage != nil {
			if err := afterPage(ctx); err != nil {
				return s.fail(ctx, cfg, start, result, err)
			}
		}

		if page.NextLink != "" {
			next, err := s.Source.ResolveNextLink(page.NextLink)
			if err != nil {
				return s.fail(ctx, cfg, start, result, &mls.UpstreamError{URL: page.NextLink, Err: err})
			}
			pageURL = next
			continue
		}
		if len(page.Records) < pageSize {
			break
		}
		if !keyset.After(prevKeyset) {
			s.logger().Warn("page carries no newer timestamp, stopping",
				zap.String("resource", cfg.Name),
				zap.Time("after", keyset),
			)
			break
		}
		pageURL = pageQuery(keyset)
	}

	finished := s.now()
	result.Outcome = outcome
	notes := fmt.Sprintf("%s: pages=%d fetched=%d upserted=%d skipped=%d",
		outcome, result.Pages, result.Fetched, result.Upserted, result.Skipped)
	next := &models.SyncCursor{
		Resource:              cfg.Name,
		LastModifiedWatermark: &watermark,
		LastRunAt:             &finished,
		LastRunNotes:          &notes,
		LastSuccessAt:         &finished,
		LastError:             nil,
		StatsJSON:             statsJSON(result),
	}
	if err := s.Store.AdvanceSyncCursor(ctx, next); err != nil {
		return s.fail(ctx, cfg, start, result, &PersistenceError{Op: "advance cursor", Err: err})
	}

	result.OK = true
	result.LastWatermark = &watermark
	result.DurationMs = finished.Sub(start).Milliseconds()
	metrics.RecordResourceRun(cfg.Name, outcome, result.Pages, result.Fetched, result.Upserted, result.Skipped, finished.Sub(start), "")
	metrics.RecordWatermark(cfg.Name, watermark, finished)
	s.logger().Info("resource sync done",
		zap.String("resource", cfg.Name),
		zap.String("outcome", outcome),
		zap.Int("pages", result.Pages),
		zap.Int("fetched", result.Fetched),
		zap.Int("upserted", result.Upserted),
		zap.Int("skipped", result.Skipped),
		zap.Time("watermark", watermark),
	)
	return result, nil
}

// fail records err on the cursor notes without touching the watermark.
func (s *ResourceSyncer) fail(ctx context.Context, cfg ResourceConfig, start time.Time, result SyncRunResult, err error) (SyncRunResult, error) {
	finished := s.now()
	result.OK = false
	result.Outcome = OutcomeFailed
	result.Error = err.Error()
	result.ErrorKind = ErrorKind(err)
	result.DurationMs = finished.Sub(start).Milliseconds()
	s.logger().Warn("resource sync failed",
		zap.String("resource", cfg.Name),
		zap.String("error_kind", result.ErrorKind),
		zap.Int("pages", result.Pages),
		zap.Error(err),
	)
	if s.Store != nil {
		if markErr := s.Store.MarkSyncCursorFailed(context.WithoutCancel(ctx), cfg.Name, finished, err.Error()); markErr != nil {
			s.logger().Warn("record cursor failure", zap.String("resource", cfg.Name), zap.Error(markErr))
		}
	}
	metrics.RecordResourceRun(cfg.Name, OutcomeFailed, result.Pages, result.Fetched, result.Upserted, result.Skipped, finished.Sub(start), result.ErrorKind)
	return result, err
}

func (s *ResourceSyncer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ResourceSyncer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func statsJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
