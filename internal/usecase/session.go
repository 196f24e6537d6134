package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rocketmoon/identity/internal/domain"
	"github.com/rocketmoon/identity/internal/repository"
	"github.com/rocketmoon/identity/internal/token"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// SessionRegistry manages the per-user set of live bearer tokens. A token
// counts as a session only while it is a member of the user's stored set,
// which is what lets logout on one device take effect immediately without
// touching the others.
type SessionRegistry struct {
	users repository.UserRepository
	codec *token.Codec
	ttl   time.Duration
}

func NewSessionRegistry(users repository.UserRepository, codec *token.Codec) *SessionRegistry {
	return &SessionRegistry{
		users: users,
		codec: codec,
		ttl:   defaultSessionTTL,
	}
}

// Issue creates a session token for the user and appends it to their live
// set with an atomic delta. The token is returned exactly once.
func (r *SessionRegistry) Issue(ctx context.Context, user *domain.User) (string, error) {
	authToken, err := r.codec.Issue(user.ID, token.PurposeAuth, r.ttl)
	if err != nil {
		return "", err
	}
	if err := r.users.AddAuthToken(ctx, user.ID, authToken); err != nil {
		return "", fmt.Errorf("store auth token: %w", err)
	}

	user.AuthTokens = append(user.AuthTokens, authToken)
	return authToken, nil
}

// Revoke removes the exact token from the user's live set. Revoking a
// token that is already gone is a successful no-op.
func (r *SessionRegistry) Revoke(ctx context.Context, user *domain.User, authToken string) error {
	if err := r.users.RemoveAuthToken(ctx, user.ID, authToken); err != nil {
		return fmt.Errorf("remove auth token: %w", err)
	}

	user.AuthTokens = slices.DeleteFunc(user.AuthTokens, func(t string) bool {
		return t == authToken
	})
	return nil
}

// Resolve authenticates a bearer token: signature, expiry, purpose, then
// membership in the subject's live session set. A cryptographically valid
// token that was logged out resolves to ErrRevokedToken.
func (r *SessionRegistry) Resolve(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := r.codec.Verify(raw, token.PurposeAuth)
	if err != nil {
		return nil, err
	}

	user, err := r.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !user.HasAuthToken(raw) {
		return nil, domain.ErrRevokedToken
	}
	return user, nil
}
