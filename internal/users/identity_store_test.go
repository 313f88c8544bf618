package users

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursekeep.org/internal/auth"
)

func TestIdentityStoreSave(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	store := NewIdentityStore(repo)

	id := auth.Identity{Username: "alice", PasswordHash: "h", Role: auth.RoleUser}
	require.NoError(t, store.Save(ctx, &id))
	require.NotEmpty(t, id.ID)

	_, err := repo.Update(ctx, id.ID, Patch{Budget: ptr(42.0)})
	require.NoError(t, err)

	id.Disabled = true
	require.NoError(t, store.Save(ctx, &id))

	got, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	rec, err := repo.FindByID(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, rec.Budget)

	dup := auth.Identity{Username: "alice"}
	assert.ErrorIs(t, store.Save(ctx, &dup), auth.ErrConflict)

	require.NoError(t, store.Delete(ctx, id.ID))
	_, err = store.FindByID(ctx, id.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

// TestCredentialFlow runs the whole account lifecycle against the real hasher
// and codec.
func TestCredentialFlow(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher, err := auth.NewHasher(auth.HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	codec, err := auth.NewCodec(auth.TokenConfig{Secret: []byte("test-secret"), TTL: time.Minute})
	require.NoError(t, err)

	repo := NewMemoryRepository()
	svc := NewService(repo, hasher, logger)
	store := NewIdentityStore(repo)
	authn := auth.NewAuthenticator(store, hasher, logger)
	resolver := auth.NewResolver(codec, store, logger)

	u, err := svc.Create(ctx, NewUser{Username: "alice", Password: "s3cret", Budget: 10})
	require.NoError(t, err)

	id, err := authn.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.ID)

	_, err = authn.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	token, _, err := codec.Issue(id.ID, codec.TTL())
	require.NoError(t, err)

	resolved, err := resolver.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resolved.ID)
	_, err = auth.RequireAdmin(resolved)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.AdminUpdate(ctx, u.ID, AdminUpdate{Disabled: ptr(true)})
	require.NoError(t, err)
	_, err = resolver.Resolve(ctx, token)
	assert.ErrorIs(t, err, auth.ErrAccountDisabled)
}

func TestTokenSurvivesUsernameReuse(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher, err := auth.NewHasher(auth.HashParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	codec, err := auth.NewCodec(auth.TokenConfig{Secret: []byte("test-secret"), TTL: time.Minute})
	require.NoError(t, err)

	repo := NewMemoryRepository()
	svc := NewService(repo, hasher, logger)
	store := NewIdentityStore(repo)
	authn := auth.NewAuthenticator(store, hasher, logger)
	resolver := auth.NewResolver(codec, store, logger)

	original, err := svc.Create(ctx, NewUser{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	id, err := authn.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	oldToken, _, err := codec.Issue(id.ID, codec.TTL())
	require.NoError(t, err)

	_, err = svc.SelfUpdate(ctx, original.ID, SelfUpdate{Username: "alice2"})
	require.NoError(t, err)
	squatter, err := svc.Create(ctx, NewUser{Username: "alice", Password: "other"})
	require.NoError(t, err)
	require.NotEqual(t, original.ID, squatter.ID)

	resolved, err := resolver.Resolve(ctx, oldToken)
	require.NoError(t, err)
	assert.Equal(t, original.ID, resolved.ID)
	assert.Equal(t, "alice2", resolved.Username)

	// A token carrying a bare username no longer resolves to anyone.
	byName, _, err := codec.Issue("alice", codec.TTL())
	require.NoError(t, err)
	_, err = resolver.Resolve(ctx, byName)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
