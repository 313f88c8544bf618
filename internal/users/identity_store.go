package users

import (
	"context"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/ids"
)

// IdentityStore exposes a Repository as the auth core's UserStore.
type IdentityStore struct {
	repo Repository
}

var _ auth.UserStore = (*IdentityStore)(nil)

func NewIdentityStore(repo Repository) *IdentityStore {
	return &IdentityStore{repo: repo}
}

func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (auth.Identity, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return auth.Identity{}, err
	}
	return u.Identity(), nil
}

// FindByID reports malformed identifiers as not found without a store round trip.
func (s *IdentityStore) FindByID(ctx context.Context, id string) (auth.Identity, error) {
	if !ids.Valid(id) {
		return auth.Identity{}, auth.ErrNotFound
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return auth.Identity{}, err
	}
	return u.Identity(), nil
}

// Save creates identity when it has no ID and otherwise overwrites the
// auth-owned columns of the existing record. Budget is left untouched.
func (s *IdentityStore) Save(ctx context.Context, identity *auth.Identity) error {
	if identity.ID == "" {
		u := User{
			Username:     identity.Username,
			PasswordHash: identity.PasswordHash,
			Role:         identity.Role,
			Disabled:     identity.Disabled,
		}
		if err := s.repo.Create(ctx, &u); err != nil {
			return err
		}
		identity.ID = u.ID
		return nil
	}
	_, err := s.repo.Update(ctx, identity.ID, Patch{
		Username:     &identity.Username,
		PasswordHash: &identity.PasswordHash,
		Role:         &identity.Role,
		Disabled:     &identity.Disabled,
	})
	return err
}

func (s *IdentityStore) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
