package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mlssync/internal/models"
)

func (s *Store) GetAccessToken(ctx context.Context, name string) (*models.AccessToken, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.AccessToken
	err := s.db.WithContext(ctx).First(&item, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveAccessToken(ctx context.Context, item *models.AccessToken) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "token_type", "expires_at", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) DeleteAccessToken(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.AccessToken{}).Error
}
