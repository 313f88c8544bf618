package users

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/ids"
)

func TestMemoryRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u := User{Username: "alice", PasswordHash: "h1", Role: auth.RoleUser, Budget: 10}
	require.NoError(t, repo.Create(ctx, &u))
	assert.True(t, ids.Valid(u.ID))
	assert.False(t, u.CreatedAt.IsZero())

	byName, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u, byName)

	newName := "alice2"
	budget := 25.5
	updated, err := repo.Update(ctx, u.ID, Patch{Username: &newName, Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, 25.5, updated.Budget)
	assert.Equal(t, "h1", updated.PasswordHash)

	_, err = repo.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = repo.FindByUsername(ctx, "alice2")
	assert.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, u.ID))
	_, err = repo.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, u.ID), auth.ErrNotFound)
}

func TestMemoryRepositoryConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	a := User{Username: "alice"}
	b := User{Username: "bob"}
	require.NoError(t, repo.Create(ctx, &a))
	require.NoError(t, repo.Create(ctx, &b))

	dup := User{Username: "alice"}
	assert.ErrorIs(t, repo.Create(ctx, &dup), auth.ErrConflict)

	taken := "alice"
	_, err := repo.Update(ctx, b.ID, Patch{Username: &taken})
	assert.ErrorIs(t, err, auth.ErrConflict)

	_, err = repo.Update(ctx, "missing", Patch{Username: &taken})
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestMemoryRepositoryConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := User{Username: "race"}
			if repo.Create(ctx, &u) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}
