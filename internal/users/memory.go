package users

import (
	"context"
	"sync"
	"time"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/ids"
)

// MemoryRepository keeps users in process memory. It is used when no
// database is configured and in tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]User
	byUsername map[string]string
	now        func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]User),
		byUsername: make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }

func (m *MemoryRepository) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byUsername[u.Username]; taken {
		return auth.ErrConflict
	}
	now := m.now()
	u.ID = ids.New()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.byID[u.ID] = *u
	m.byUsername[u.Username] = u.ID
	return nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return User{}, auth.ErrNotFound
	}
	return u, nil
}

func (m *MemoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return User{}, auth.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryRepository) Update(_ context.Context, id string, patch Patch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return User{}, auth.ErrNotFound
	}
	if patch.empty() {
		return u, nil
	}
	oldName := u.Username
	if patch.Username != nil && *patch.Username != oldName {
		if _, taken := m.byUsername[*patch.Username]; taken {
			return User{}, auth.ErrConflict
		}
	}
	patch.apply(&u)
	u.UpdatedAt = m.now()
	if u.Username != oldName {
		delete(m.byUsername, oldName)
		m.byUsername[u.Username] = id
	}
	m.byID[id] = u
	return u, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byUsername, u.Username)
	return nil
}
