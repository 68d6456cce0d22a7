package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"mlssync/internal/models"
)

// UpsertTarget describes where a batch of mapped records lands.
//
// Key is the natural-key column. Columns lists every column written on
// update; first_seen_at is never part of it so re-applying a page leaves the
// row unchanged. TimestampColumn guards updates: an incoming row only
// overwrites when its timestamp is not older than the stored one.
type UpsertTarget struct {
	Table           string
	Key             string
	Columns         []string
	TimestampColumn string
	BatchSize       int
}

// SyncRepository persists target records and the bookkeeping for incremental runs.
type SyncRepository interface {
	UpsertRecords(ctx context.Context, target UpsertTarget, rows []map[string]any) (int64, error)

	GetSyncCursor(ctx context.Context, resource string) (*models.SyncCursor, error)
	AdvanceSyncCursor(ctx context.Context, cursor *models.SyncCursor) error
	MarkSyncCursorFailed(ctx context.Context, resource string, at time.Time, message string) error
	ListSyncCursors(ctx context.Context) ([]models.SyncCursor, error)

	AcquireSyncLease(ctx context.Context, resource, owner string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseSyncLease(ctx context.Context, resource, owner string) error

	InsertSyncRun(ctx context.Context, item *models.SyncRun) error
	ListSyncRuns(ctx context.Context, params ListSyncRunsParams) ([]models.SyncRun, error)
	CountSyncRuns(ctx context.Context, params ListSyncRunsParams) (int64, error)
}

type TokenRepository interface {
	GetAccessToken(ctx context.Context, name string) (*models.AccessToken, error)
	SaveAccessToken(ctx context.Context, item *models.AccessToken) error
	DeleteAccessToken(ctx context.Context, name string) error
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

// ListingRepository serves the read side over the synced tables.
type ListingRepository interface {
	GetProperty(ctx context.Context, listingKey string) (*models.Property, error)
	ListProperties(ctx context.Context, params ListPropertiesParams) ([]models.Property, error)
	CountProperties(ctx context.Context, params ListPropertiesParams) (int64, error)
	ListMembers(ctx context.Context, params ListMembersParams) ([]models.Member, error)
	CountMembers(ctx context.Context, params ListMembersParams) (int64, error)
	ListOffices(ctx context.Context, params ListOfficesParams) ([]models.Office, error)
	CountOffices(ctx context.Context, params ListOfficesParams) (int64, error)
	ListOpenHouses(ctx context.Context, params ListOpenHousesParams) ([]models.OpenHouse, error)
	CountOpenHouses(ctx context.Context, params ListOpenHousesParams) (int64, error)
}

type Repository interface {
	SyncRepository
	TokenRepository
	SettingsRepository
	ListingRepository
}

type ListSyncRunsParams struct {
	Limit   int
	Offset  int
	Trigger *string
	OK      *bool
	Since   *time.Time
	OrderBy string
	Asc     *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

type ListPropertiesParams struct {
	Limit         int
	Offset        int
	Status        *string
	PropertyType  *string
	City          *string
	PostalCode    *string
	ListAgentKey  *string
	ListOfficeKey *string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	MinBedrooms   *int
	ModifiedSince *time.Time
	OrderBy       string
	Asc           *bool
}

type ListMembersParams struct {
	Limit     int
	Offset    int
	OfficeKey *string
	Name      *string
	Status    *string
	OrderBy   string
	Asc       *bool
}

type ListOfficesParams struct {
	Limit   int
	Offset  int
	Name    *string
	City    *string
	OrderBy string
	Asc     *bool
}

type ListOpenHousesParams struct {
	Limit      int
	Offset     int
	ListingKey *string
	From       *time.Time
	To         *time.Time
	OrderBy    string
	Asc        *bool
}
