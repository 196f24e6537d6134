package repository

import (
	"context"

	"github.com/rocketmoon/identity/internal/domain"
)

// UserRepository is the storage boundary for accounts. Session and
// confirmation mutations are expressed as deltas rather than full-record
// saves so that concurrent requests against the same user cannot clobber
// each other's token changes.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// SetConfirmationMaterials stores the confirmation token / OTP token
	// pair, replacing any previous pair.
	SetConfirmationMaterials(ctx context.Context, userID, confirmationToken, otpToken string) error

	// MarkConfirmed flips the confirmed flag and clears both confirmation
	// materials in one write. Idempotent.
	MarkConfirmed(ctx context.Context, userID string) error

	// AddAuthToken and RemoveAuthToken apply atomic set deltas to the
	// user's live session set. Removing an absent token is not an error.
	AddAuthToken(ctx context.Context, userID, token string) error
	RemoveAuthToken(ctx context.Context, userID, token string) error

	// ListSessionHolders returns users that currently hold at least one
	// auth token. Used by the janitor to prune expired sessions.
	ListSessionHolders(ctx context.Context, limit int) ([]*domain.User, error)
}
