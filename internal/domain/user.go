package domain

import (
	"slices"
	"time"
)

// User is the account record. The repository owns persistence; use cases
// borrow a User, mutate it, and write the change back through the
// repository's delta operations.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string

	// Confirmed flips false -> true exactly once. ConfirmationToken and
	// OTPToken are set and cleared together: both present while a
	// confirmation request is outstanding, both empty otherwise.
	Confirmed         bool
	ConfirmationToken string
	OTPToken          string

	// AuthTokens holds one bearer token per live device session.
	// Membership here is what makes logout effective before a token's
	// natural expiry.
	AuthTokens []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAuthToken reports whether token is a live session for this user.
func (u *User) HasAuthToken(token string) bool {
	return slices.Contains(u.AuthTokens, token)
}

// HasPendingConfirmation reports whether confirmation materials are
// outstanding. It says nothing about their expiry.
func (u *User) HasPendingConfirmation() bool {
	return u.ConfirmationToken != "" && u.OTPToken != ""
}
