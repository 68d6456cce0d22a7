package db

import (
	"mlssync/internal/models"
)

// AutoMigrate creates or updates the sync bookkeeping tables and the four
// target tables.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.Property{},
		&models.Member{},
		&models.Office{},
		&models.OpenHouse{},
		&models.SyncCursor{},
		&models.SyncLease{},
		&models.SyncRun{},
		&models.AccessToken{},
		&models.SystemSetting{},
	)
}
