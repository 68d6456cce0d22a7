package mls

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"mlssync/internal/models"
	"mlssync/internal/repository"
)

// DBTokenStore keeps the bearer token in mls_access_tokens so separate
// invocations (CLI runs, restarts) reuse it. With a Cipher set the value is
// sealed at rest.
type DBTokenStore struct {
	Repo   repository.TokenRepository
	Name   string
	Cipher *TokenCipher
	Now    func() time.Time
}

func NewDBTokenStore(repo repository.TokenRepository, name string) *DBTokenStore {
	if name == "" {
		name = "mls"
	}
	return &DBTokenStore{Repo: repo, Name: name, Now: time.Now}
}

func (s *DBTokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	row, err := s.Repo.GetAccessToken(ctx, s.Name)
	if err != nil || row == nil {
		return nil, err
	}
	value, err := s.Cipher.Open(s.Name, row.Value)
	if err != nil {
		// Unreadable rows are treated as absent; the next Save replaces them.
		return nil, nil
	}
	return &oauth2.Token{
		AccessToken: value,
		TokenType:   row.TokenType,
		Expiry:      row.ExpiresAt,
	}, nil
}

func (s *DBTokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if s == nil || s.Repo == nil || tok == nil {
		return nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	value, err := s.Cipher.Seal(s.Name, tok.AccessToken)
	if err != nil {
		return err
	}
	return s.Repo.SaveAccessToken(ctx, &models.AccessToken{
		Name:      s.Name,
		Value:     value,
		TokenType: tok.Type(),
		ExpiresAt: tok.Expiry.UTC(),
		UpdatedAt: now().UTC(),
	})
}

func (s *DBTokenStore) Clear(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	return s.Repo.DeleteAccessToken(ctx, s.Name)
}
