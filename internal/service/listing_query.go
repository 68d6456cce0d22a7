package service

import (
	"context"

	"mlssync/internal/models"
	"mlssync/internal/repository"
)

// ListingQueryService serves read-only queries over the synced tables.
type ListingQueryService struct {
	Repo repository.ListingRepository
}

type ListResult[T any] struct {
	Items []T
	Total int64
}

func listWithTotal[T any](count func() (int64, error), list func() ([]T, error)) (ListResult[T], error) {
	total, err := count()
	if err != nil {
		return ListResult[T]{}, err
	}
	items, err := list()
	if err != nil {
		return ListResult[T]{}, err
	}
	return ListResult[T]{Items: items, Total: total}, nil
}

func (s *ListingQueryService) GetListing(ctx context.Context, key string) (*models.Property, error) {
	return s.Repo.GetProperty(ctx, key)
}

func (s *ListingQueryService) ListListings(ctx context.Context, params repository.ListPropertiesParams) (ListResult[models.Property], error) {
	return listWithTotal(
		func() (int64, error) { return s.Repo.CountProperties(ctx, params) },
		func() ([]models.Property, error) { return s.Repo.ListProperties(ctx, params) },
	)
}

func (s *ListingQueryService) ListMembers(ctx context.Context, params repository.ListMembersParams) (ListResult[models.Member], error) {
	return listWithTotal(
		func() (int64, error) { return s.Repo.CountMembers(ctx, params) },
		func() ([]models.Member, error) { return s.Repo.ListMembers(ctx, params) },
	)
}

func (s *ListingQueryService) ListOffices(ctx context.Context, params repository.ListOfficesParams) (ListResult[models.Office], error) {
	return listWithTotal(
		func() (int64, error) { return s.Repo.CountOffices(ctx, params) },
		func() ([]models.Office, error) { return s.Repo.ListOffices(ctx, params) },
	)
}

func (s *ListingQueryService) ListOpenHouses(ctx context.Context, params repository.ListOpenHousesParams) (ListResult[models.OpenHouse], error) {
	return listWithTotal(
		func() (int64, error) { return s.Repo.CountOpenHouses(ctx, params) },
		func() ([]models.OpenHouse, error) { return s.Repo.ListOpenHouses(ctx, params) },
	)
}
