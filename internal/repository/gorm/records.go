package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mlssync/internal/repository"
)

// UpsertRecords writes rows into target.Table in one transaction, batching
// the inserts. Rows whose stored timestamp is newer than the incoming one are
// left alone and do not count towards the returned total.
func (s *Store) UpsertRecords(ctx context.Context, target repository.UpsertTarget, rows []map[string]any) (int64, error) {
	if s == nil || s.db == nil || len(rows) == 0 {
		return 0, nil
	}
	if err := validateTarget(target); err != nil {
		return 0, err
	}
	batchSize := target.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: target.Key}},
		DoUpdates: clause.AssignmentColumns(target.Columns),
	}
	if ts := strings.TrimSpace(target.TimestampColumn); ts != "" {
		conflict.Where = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: fmt.Sprintf(
				"%[1]s.%[2]s IS NULL OR excluded.%[2]s >= %[1]s.%[2]s",
				target.Table, ts,
			)},
		}}
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < len(rows); i += batchSize {
			end := i + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			res := tx.Table(target.Table).Clauses(conflict).Create(rows[i:end])
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func validateTarget(target repository.UpsertTarget) error {
	if strings.TrimSpace(target.Table) == "" {
		return errors.New("upsert target table is empty")
	}
	if strings.TrimSpace(target.Key) == "" {
		return errors.New("upsert target key is empty")
	}
	if len(target.Columns) == 0 {
		return errors.New("upsert target has no update columns")
	}
	for _, col := range target.Columns {
		if col == target.Key || col == "first_seen_at" {
			return fmt.Errorf("upsert target column %q cannot be updated", col)
		}
	}
	return nil
}
