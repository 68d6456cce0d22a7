package service

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"

	"mlssync/internal/models"
	"mlssync/internal/repository"
)

const (
	FeatureSyncCron   = "feature.sync.cron"
	featureSyncPrefix = "feature.sync."
)

// FeatureForResource returns the switch gating scheduled runs of resource.
func FeatureForResource(resource string) string {
	return featureSyncPrefix + strings.ToLower(strings.TrimSpace(resource))
}

func DefaultFeatureSwitches() map[string]bool {
	out := map[string]bool{FeatureSyncCron: true}
	for _, r := range DefaultResources() {
		out[FeatureForResource(r.Name)] = true
	}
	return out
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches creates missing switches. Existing values are left
// as the operator set them.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

// EnabledResources filters names down to the resources whose switch is on.
func (s *SystemSettingsService) EnabledResources(ctx context.Context, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if s.IsEnabled(ctx, FeatureForResource(name), true) {
			out = append(out, name)
		}
	}
	return out
}
