package domain

import "errors"

var (
	ErrDuplicateIdentity  = errors.New("username or email already exists")
	ErrAuthFailed         = errors.New("invalid username or password")
	ErrCredentialsInvalid = errors.New("could not validate credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingSubject     = errors.New("token has no subject")
	ErrTokenExpired       = errors.New("token expired")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrForbidden          = errors.New("forbidden")

	ErrUserNotFound      = errors.New("user not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrAlreadySubscribed = errors.New("user already subscribed to event")
	ErrNotSubscribed     = errors.New("user not subscribed to event")
	ErrInvalidAction     = errors.New("action must be one of add, remove")
	ErrInvalidInput      = errors.New("invalid input")
)

// IsTokenError reports whether err is one of the token validation failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrMissingSubject) ||
		errors.Is(err, ErrTokenExpired)
}
