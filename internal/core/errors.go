package core

import "errors"

// Denial codes carried on login_denied frames.
const (
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeAlreadyOnline      = "already_online"
	ErrCodeUsernameTaken      = "username_taken"
	ErrCodeWeakPassword       = "weak_password"
	ErrCodeNotAuthenticated   = "not_authenticated"
	ErrCodeInternal           = "internal_error"
)

// AuthError is a denial surfaced to the requesting session only. The session
// stays Unauthenticated and may retry.
type AuthError struct {
	Code   string
	Reason string
}

func (e *AuthError) Error() string {
	return e.Reason
}

var (
	ErrInvalidCredentials = &AuthError{Code: ErrCodeInvalidCredentials, Reason: "Incorrect user name or password"}
	ErrAlreadyOnline      = &AuthError{Code: ErrCodeAlreadyOnline, Reason: "User is already logged in"}
	ErrUsernameTaken      = &AuthError{Code: ErrCodeUsernameTaken, Reason: "Username already exists"}
	ErrWeakPassword       = &AuthError{Code: ErrCodeWeakPassword, Reason: "Password must be at least 8 characters"}
)

// ErrUserNotFound is returned by Kick when no session is bound to the name.
var ErrUserNotFound = errors.New("user not found")
