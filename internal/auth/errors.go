package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// Kind classifies an authentication or authorization failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindAccountDisabled
	KindForbidden
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindAccountDisabled:
		return "account disabled"
	case KindForbidden:
		return "forbidden"
	case KindInternal:
		return "internal error"
	default:
		return "unknown"
	}
}

// Error is returned by the authenticator, resolver and authorizer.
// Error() never includes the cause; Unwrap exposes it for logging.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return "auth: " + e.Kind.String() }

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so wrapped faults still satisfy
// errors.Is(err, ErrInternal).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrAccountDisabled    = &Error{Kind: KindAccountDisabled}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrInternal           = &Error{Kind: KindInternal}
)

func internalFault(cause error) error {
	return &Error{Kind: KindInternal, cause: cause}
}

// KindOf reports the failure kind carried by err. Errors that are not
// *Error values are reported as KindInternal; nil is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
