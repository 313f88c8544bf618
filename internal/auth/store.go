package auth

import "context"

// UserStore is the persistence collaborator the auth core depends on.
// Lookups return ErrNotFound when no identity matches.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	// Save creates the identity when ID is empty (assigning one) and
	// updates it otherwise. Usernames must stay unique (ErrConflict).
	Save(ctx context.Context, identity *Identity) error
	Delete(ctx context.Context, id string) error
}
