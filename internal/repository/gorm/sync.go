package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mlssync/internal/models"
	"mlssync/internal/repository"
)

func (s *Store) GetSyncCursor(ctx context.Context, resource string) (*models.SyncCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var cursor models.SyncCursor
	err := s.db.WithContext(ctx).First(&cursor, "resource = ?", resource).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

// AdvanceSyncCursor upserts the cursor after a successful run. The stored
// watermark never moves backwards even if a slower writer commits later.
func (s *Store) AdvanceSyncCursor(ctx context.Context, cursor *models.SyncCursor) error {
	if s == nil || s.db == nil || cursor == nil {
		return nil
	}
	if strings.TrimSpace(cursor.Resource) == "" {
		return errors.New("sync cursor resource is empty")
	}
	updates := clause.Set{{
		Column: clause.Column{Name: "last_modified_watermark"},
		Value: gorm.Expr("CASE WHEN mls_sync_cursors.last_modified_watermark IS NULL " +
			"OR excluded.last_modified_watermark > mls_sync_cursors.last_modified_watermark " +
			"THEN excluded.last_modified_watermark ELSE mls_sync_cursors.last_modified_watermark END"),
	}}
	updates = append(updates, clause.AssignmentColumns([]string{
		"last_run_at",
		"last_run_notes",
		"last_success_at",
		"last_error",
		"stats_json",
	})...)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource"}},
		DoUpdates: updates,
	}).Create(cursor).Error
}

// MarkSyncCursorFailed records a failed attempt on an existing cursor. The
// watermark is untouched and no row is created for a resource that has
// never completed a run.
func (s *Store) MarkSyncCursorFailed(ctx context.Context, resource string, at time.Time, message string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.SyncCursor{}).
		Where("resource = ?", resource).
		Updates(map[string]any{
			"last_run_at":    at,
			"last_run_notes": "failed",
			"last_error":     message,
		}).Error
}

func (s *Store) ListSyncCursors(ctx context.Context) ([]models.SyncCursor, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SyncCursor
	if err := s.db.WithContext(ctx).Order("resource asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AcquireSyncLease claims resource for owner until now+ttl. It succeeds when
// no lease exists, the current one has expired, or owner already holds it.
func (s *Store) AcquireSyncLease(ctx context.Context, resource, owner string, now time.Time, ttl time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return true, nil
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	lease := models.SyncLease{
		Resource:   resource,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "acquired_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("mls_sync_leases.expires_at < ? OR mls_sync_leases.owner = excluded.owner", now),
		}},
	}).Create(&lease)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ReleaseSyncLease(ctx context.Context, resource, owner string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("resource = ? AND owner = ?", resource, owner).
		Delete(&models.SyncLease{}).Error
}

func (s *Store) InsertSyncRun(ctx context.Context, item *models.SyncRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListSyncRuns(ctx context.Context, params repository.ListSyncRunsParams) ([]models.SyncRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := syncRunFilter(s.db.WithContext(ctx).Model(&models.SyncRun{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "started_at")
	var items []models.SyncRun
	if err := query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSyncRuns(ctx context.Context, params repository.ListSyncRunsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := syncRunFilter(s.db.WithContext(ctx).Model(&models.SyncRun{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func syncRunFilter(query *gorm.DB, params repository.ListSyncRunsParams) *gorm.DB {
	if v, ok := trimmed(params.Trigger); ok {
		query = query.Where("run_trigger = ?", v)
	}
	if params.OK != nil {
		query = query.Where("ok = ?", *params.OK)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("started_at >= ?", *params.Since)
	}
	return query
}
