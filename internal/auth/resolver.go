package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// TokenDecoder decodes and validates an access token.
type TokenDecoder interface {
	Decode(token string) (*Claims, error)
}

// Resolver turns a bearer token into the identity it was issued for.
type Resolver struct {
	tokens TokenDecoder
	users  UserStore
	logger *slog.Logger
}

// NewResolver wires the token decoder and user store.
func NewResolver(tokens TokenDecoder, users UserStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tokens: tokens, users: users, logger: logger}
}

// Resolve decodes token, loads the user whose stable ID is the subject and
// rejects disabled accounts.
// Every token or lookup failure collapses to ErrInvalidCredentials; a
// disabled account yields ErrAccountDisabled; anything unexpected yields
// ErrInternal.
func (r *Resolver) Resolve(ctx context.Context, token string) (id Identity, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = r.fault(ctx, fmt.Errorf("panic: %v", rec))
			id = Identity{}
		}
	}()

	claims, err := r.tokens.Decode(token)
	if err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, ErrInvalidCredentials
	}
	user, err := r.users.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, r.fault(ctx, err)
	}
	if user.Disabled {
		return Identity{}, ErrAccountDisabled
	}
	return user, nil
}

func (r *Resolver) fault(ctx context.Context, cause error) error {
	r.logger.ErrorContext(ctx, "auth internal fault", "op", "resolve", "err", cause)
	return internalFault(cause)
}
