package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncCursor is the per-resource high-water mark. Rows are created by the
// first successful run and never deleted by the sync engine.
type SyncCursor struct {
	Resource              string         `gorm:"column:resource;primaryKey;type:text" json:"resource"`
	LastModifiedWatermark *time.Time     `gorm:"column:last_modified_watermark" json:"last_modified_watermark"`
	LastRunAt             *time.Time     `gorm:"column:last_run_at" json:"last_run_at"`
	LastRunNotes          *string        `gorm:"column:last_run_notes;type:text" json:"last_run_notes"`
	LastSuccessAt         *time.Time     `gorm:"column:last_success_at" json:"last_success_at"`
	LastError             *string        `gorm:"column:last_error;type:text" json:"last_error"`
	StatsJSON             datatypes.JSON `gorm:"column:stats_json" json:"stats"`
}

func (SyncCursor) TableName() string {
	return "mls_sync_cursors"
}
