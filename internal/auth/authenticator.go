package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(password, encoded string) bool
}

// Authenticator exchanges a username/password pair for an identity.
type Authenticator struct {
	users    UserStore
	verifier PasswordVerifier
	logger   *slog.Logger
}

// NewAuthenticator wires the user store and password verifier.
func NewAuthenticator(users UserStore, verifier PasswordVerifier, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{users: users, verifier: verifier, logger: logger}
}

// Authenticate returns the identity owning username if password matches.
// An unknown username and a wrong password both yield ErrInvalidCredentials.
// Disabled accounts are not rejected here.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (id Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = a.fault(ctx, "authenticate", fmt.Errorf("panic: %v", r))
			id = Identity{}
		}
	}()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, a.fault(ctx, "authenticate", err)
	}
	if user.PasswordHash == "" || !a.verifier.Verify(password, user.PasswordHash) {
		return Identity{}, ErrInvalidCredentials
	}
	return user, nil
}

func (a *Authenticator) fault(ctx context.Context, op string, cause error) error {
	a.logger.ErrorContext(ctx, "auth internal fault", "op", op, "err", cause)
	return internalFault(cause)
}
