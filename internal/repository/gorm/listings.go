package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"mlssync/internal/models"
	"mlssync/internal/repository"
)

func (s *Store) GetProperty(ctx context.Context, listingKey string) (*models.Property, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	listingKey = strings.TrimSpace(listingKey)
	if listingKey == "" {
		return nil, nil
	}
	var item models.Property
	err := s.db.WithContext(ctx).First(&item, "listing_key = ?", listingKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListProperties(ctx context.Context, params repository.ListPropertiesParams) ([]models.Property, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := propertyFilter(s.db.WithContext(ctx).Model(&models.Property{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "rf_modification_timestamp")
	var items []models.Property
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountProperties(ctx context.Context, params repository.ListPropertiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := propertyFilter(s.db.WithContext(ctx).Model(&models.Property{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func propertyFilter(query *gorm.DB, params repository.ListPropertiesParams) *gorm.DB {
	if v, ok := trimmed(params.Status); ok {
		query = query.Where("standard_status = ?", v)
	}
	if v, ok := trimmed(params.PropertyType); ok {
		query = query.Where("property_type = ?", v)
	}
	if v, ok := trimmed(params.City); ok {
		query = query.Where("LOWER(city) = ?", strings.ToLower(v))
	}
	if v, ok := trimmed(params.PostalCode); ok {
		query = query.Where("postal_code = ?", v)
	}
	if v, ok := trimmed(params.ListAgentKey); ok {
		query = query.Where("list_agent_key = ?", v)
	}
	if v, ok := trimmed(params.ListOfficeKey); ok {
		query = query.Where("list_office_key = ?", v)
	}
	if params.MinPrice != nil {
		query = query.Where("list_price >= ?", *params.MinPrice)
	}
	if params.MaxPrice != nil {
		query = query.Where("list_price <= ?", *params.MaxPrice)
	}
	if params.MinBedrooms != nil {
		query = query.Where("bedrooms_total >= ?", *params.MinBedrooms)
	}
	if params.ModifiedSince != nil && !params.ModifiedSince.IsZero() {
		query = query.Where("rf_modification_timestamp >= ?", *params.ModifiedSince)
	}
	return query
}

func (s *Store) ListMembers(ctx context.Context, params repository.ListMembersParams) ([]models.Member, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := memberFilter(s.db.WithContext(ctx).Model(&models.Member{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "rf_modification_timestamp")
	var items []models.Member
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMembers(ctx context.Context, params repository.ListMembersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := memberFilter(s.db.WithContext(ctx).Model(&models.Member{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func memberFilter(query *gorm.DB, params repository.ListMembersParams) *gorm.DB {
	if v, ok := trimmed(params.OfficeKey); ok {
		query = query.Where("office_key = ?", v)
	}
	if v, ok := trimmed(params.Name); ok {
		query = query.Where("LOWER(member_full_name) LIKE ?", likePattern(v))
	}
	if v, ok := trimmed(params.Status); ok {
		query = query.Where("member_status = ?", v)
	}
	return query
}

func (s *Store) ListOffices(ctx context.Context, params repository.ListOfficesParams) ([]models.Office, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := officeFilter(s.db.WithContext(ctx).Model(&models.Office{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "rf_modification_timestamp")
	var items []models.Office
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOffices(ctx context.Context, params repository.ListOfficesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := officeFilter(s.db.WithContext(ctx).Model(&models.Office{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func officeFilter(query *gorm.DB, params repository.ListOfficesParams) *gorm.DB {
	if v, ok := trimmed(params.Name); ok {
		query = query.Where("LOWER(office_name) LIKE ?", likePattern(v))
	}
	if v, ok := trimmed(params.City); ok {
		query = query.Where("LOWER(office_city) = ?", strings.ToLower(v))
	}
	return query
}

func (s *Store) ListOpenHouses(ctx context.Context, params repository.ListOpenHousesParams) ([]models.OpenHouse, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := openHouseFilter(s.db.WithContext(ctx).Model(&models.OpenHouse{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "open_house_start_time")
	var items []models.OpenHouse
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpenHouses(ctx context.Context, params repository.ListOpenHousesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := openHouseFilter(s.db.WithContext(ctx).Model(&models.OpenHouse{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func openHouseFilter(query *gorm.DB, params repository.ListOpenHousesParams) *gorm.DB {
	if v, ok := trimmed(params.ListingKey); ok {
		query = query.Where("listing_key = ?", v)
	}
	if params.From != nil && !params.From.IsZero() {
		query = query.Where("open_house_start_time >= ?", *params.From)
	}
	if params.To != nil && !params.To.IsZero() {
		query = query.Where("open_house_start_time < ?", *params.To)
	}
	return query
}
