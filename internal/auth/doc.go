// Package auth is the credential lifecycle of pursekeep: Argon2id password
// hashing, HMAC-signed JWT access tokens, username/password authentication,
// bearer token resolution and the role gate.
//
// Failures are reported as *Error values of a closed Kind set. Unknown
// users, wrong passwords and bad tokens all collapse to
// ErrInvalidCredentials; a disabled account is reported separately as
// ErrAccountDisabled once its token is otherwise valid.
package auth
