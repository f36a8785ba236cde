package domain

import "time"

// User is the domain model for registered accounts.
type User struct {
	ID           string
	Username     string
	Email        *string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// EmailOrEmpty returns the user's email or an empty string when unset.
func (u *User) EmailOrEmpty() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}
