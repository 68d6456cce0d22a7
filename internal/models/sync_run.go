package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncRun is the append-only audit record of one orchestrated invocation.
type SyncRun struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID       string         `gorm:"column:run_id;type:varchar(64);not null;uniqueIndex" json:"run_id"`
	Trigger     string         `gorm:"column:run_trigger;type:varchar(32);not null;index" json:"trigger"`
	Resources   string         `gorm:"column:resources;type:text;not null" json:"resources"`
	StartedAt   time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt  time.Time      `gorm:"column:finished_at;not null" json:"finished_at"`
	DurationMs  int64          `gorm:"column:duration_ms;not null" json:"duration_ms"`
	OK          bool           `gorm:"column:ok;not null;index" json:"ok"`
	Error       *string        `gorm:"column:error;type:text" json:"error"`
	ResultsJSON datatypes.JSON `gorm:"column:results_json" json:"results"`
}

func (SyncRun) TableName() string {
	return "mls_sync_runs"
}
