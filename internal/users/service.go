package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/ids"
)

const (
	minUsernameLen       = 3
	maxUsernameLen       = 50
	minPasswordLen       = 3
	minUpdatePasswordLen = 6
)

// Hasher produces and inspects stored password hashes.
type Hasher interface {
	Hash(password string) (string, error)
	NeedsRehash(encoded string) bool
}

// Service implements account management on top of a Repository.
type Service struct {
	repo   Repository
	hasher Hasher
	logger *slog.Logger
}

func NewService(repo Repository, hasher Hasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hasher: hasher, logger: logger}
}

// Create registers a regular, enabled account.
func (s *Service) Create(ctx context.Context, in NewUser) (User, error) {
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return User{}, err
	}
	if err := validatePassword(in.Password, minPasswordLen); err != nil {
		return User{}, err
	}
	if err := validateBudget(in.Budget); err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		Username:     username,
		PasswordHash: hash,
		Role:         auth.RoleUser,
		Budget:       in.Budget,
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user created", "user_id", u.ID)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if !ids.Valid(id) {
		return User{}, auth.ErrNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// SelfUpdate replaces the caller's username and budget and, when a password
// is supplied, its hash. Role and disabled flag are never touched.
func (s *Service) SelfUpdate(ctx context.Context, id string, in SelfUpdate) (User, error) {
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return User{}, err
	}
	if err := validateBudget(in.Budget); err != nil {
		return User{}, err
	}
	patch := Patch{Username: &username, Budget: &in.Budget}
	if in.Password != "" {
		if err := validatePassword(in.Password, minUpdatePasswordLen); err != nil {
			return User{}, err
		}
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}
	if err := s.ensureUsernameFree(ctx, id, username); err != nil {
		return User{}, err
	}
	return s.repo.Update(ctx, id, patch)
}

// AdminUpdate applies the non-nil fields of in to the account id.
func (s *Service) AdminUpdate(ctx context.Context, id string, in AdminUpdate) (User, error) {
	if !ids.Valid(id) {
		return User{}, auth.ErrNotFound
	}
	var patch Patch
	if in.Username != nil {
		username, err := normalizeUsername(*in.Username)
		if err != nil {
			return User{}, err
		}
		if err := s.ensureUsernameFree(ctx, id, username); err != nil {
			return User{}, err
		}
		patch.Username = &username
	}
	if in.Budget != nil {
		if err := validateBudget(*in.Budget); err != nil {
			return User{}, err
		}
		patch.Budget = in.Budget
	}
	if in.Role != nil {
		role, err := auth.ParseRole(*in.Role)
		if err != nil {
			return User{}, invalid("role", "must be %q or %q", auth.RoleUser, auth.RoleAdmin)
		}
		patch.Role = &role
	}
	if in.Disabled != nil {
		patch.Disabled = in.Disabled
	}
	if in.Password != nil && *in.Password != "" {
		if err := validatePassword(*in.Password, minUpdatePasswordLen); err != nil {
			return User{}, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}
	u, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user updated by admin", "user_id", id)
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if !ids.Valid(id) {
		return auth.ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}

// Bootstrap makes sure an enabled admin named username exists with the given
// password, creating the account or promoting an existing one.
func (s *Service) Bootstrap(ctx context.Context, username, password string) (User, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return User{}, err
	}
	if err := validatePassword(password, minUpdatePasswordLen); err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	role := auth.RoleAdmin
	disabled := false

	existing, err := s.repo.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		u := User{Username: username, PasswordHash: hash, Role: role}
		if err := s.repo.Create(ctx, &u); err != nil {
			return User{}, err
		}
		s.logger.InfoContext(ctx, "admin bootstrapped", "user_id", u.ID, "created", true)
		return u, nil
	case err != nil:
		return User{}, err
	}
	u, err := s.repo.Update(ctx, existing.ID, Patch{PasswordHash: &hash, Role: &role, Disabled: &disabled})
	if err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "admin bootstrapped", "user_id", u.ID, "created", false)
	return u, nil
}

// UpgradeHash re-hashes password for the account if its stored hash was
// produced with weaker parameters. Call it only after the password verified.
func (s *Service) UpgradeHash(ctx context.Context, id, password string) error {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.NeedsRehash(u.PasswordHash) {
		return nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.repo.Update(ctx, id, Patch{PasswordHash: &hash}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", id)
	return nil
}

// Ready reports whether the backing store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) ensureUsernameFree(ctx context.Context, id, username string) error {
	other, err := s.repo.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != id:
		return auth.ErrConflict
	}
	return nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return "", invalid("username", "must be between %d and %d characters", minUsernameLen, maxUsernameLen)
	}
	return username, nil
}

func validatePassword(password string, minLen int) error {
	if utf8.RuneCountInString(password) < minLen {
		return invalid("password", "must be at least %d characters", minLen)
	}
	return nil
}

func validateBudget(budget float64) error {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return invalid("budget", "must be a non-negative number")
	}
	return nil
}
