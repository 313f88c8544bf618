package users

import (
	"errors"
	"fmt"
	"time"

	"pursekeep.org/internal/auth"
)

// User is the persisted account record.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         auth.Role
	Disabled     bool
	Budget       float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the record onto the auth core's view of a caller.
func (u User) Identity() auth.Identity {
	return auth.Identity{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Disabled:     u.Disabled,
	}
}

// Patch carries the columns a repository update touches. Nil fields are left
// unchanged.
type Patch struct {
	Username     *string
	PasswordHash *string
	Role         *auth.Role
	Disabled     *bool
	Budget       *float64
}

func (p Patch) empty() bool {
	return p.Username == nil && p.PasswordHash == nil && p.Role == nil && p.Disabled == nil && p.Budget == nil
}

func (p Patch) apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Disabled != nil {
		u.Disabled = *p.Disabled
	}
	if p.Budget != nil {
		u.Budget = *p.Budget
	}
}

// NewUser is the public sign-up payload.
type NewUser struct {
	Username string
	Password string
	Budget   float64
}

// SelfUpdate is what an authenticated user may change about themselves.
type SelfUpdate struct {
	Username string
	Password string
	Budget   float64
}

// AdminUpdate is a partial update applied by an administrator.
type AdminUpdate struct {
	Username *string
	Password *string
	Budget   *float64
	Role     *string
	Disabled *bool
}

// ValidationError reports a rejected input field. It matches
// auth.ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == auth.ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
