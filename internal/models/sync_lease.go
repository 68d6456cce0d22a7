package models

import "time"

// SyncLease marks a resource as being drained by one owner until ExpiresAt.
type SyncLease struct {
	Resource   string    `gorm:"column:resource;primaryKey;type:text" json:"resource"`
	Owner      string    `gorm:"column:owner;type:text;not null" json:"owner"`
	AcquiredAt time.Time `gorm:"column:acquired_at;not null" json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

func (SyncLease) TableName() string {
	return "mls_sync_leases"
}
