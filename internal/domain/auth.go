package domain

import "time"

// TokenType discriminates access and refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPayload is the validated content of a signed token.
type TokenPayload struct {
	Subject   string
	Type      TokenType
	ExpiresAt time.Time
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
