package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the authorization tier attached to an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(strings.ToLower(s))); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, s)
	}
}

// Identity is the resolved caller. Stores map their own records to it.
type Identity struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Disabled     bool
}

// Claims is the payload carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
}
