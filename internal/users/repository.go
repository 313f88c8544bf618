package users

import "context"

// Repository persists user records. Lookups return auth.ErrNotFound when
// nothing matches and writes return auth.ErrConflict when a username is
// already taken.
type Repository interface {
	// Create assigns ID and timestamps to u and stores it.
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
