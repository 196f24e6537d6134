package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketmoon/identity/internal/credential"
	"github.com/rocketmoon/identity/internal/domain"
	"github.com/rocketmoon/identity/internal/email"
	"github.com/rocketmoon/identity/internal/repository"
)

var otpValidityMinutes = int(defaultOTPTTL.Minutes())

// AuthService orchestrates registration, confirmation, login, and session
// resolution. It never issues a session for an unconfirmed account.
type AuthService struct {
	users        repository.UserRepository
	hasher       *credential.Hasher
	confirmation *ConfirmationFlow
	sessions     *SessionRegistry
	email        email.Sender
	logger       *slog.Logger
	appBaseURL   string
}

func NewAuthService(
	users repository.UserRepository,
	hasher *credential.Hasher,
	confirmation *ConfirmationFlow,
	sessions *SessionRegistry,
	sender email.Sender,
	logger *slog.Logger,
	appBaseURL string,
) *AuthService {
	return &AuthService{
		users:        users,
		hasher:       hasher,
		confirmation: confirmation,
		sessions:     sessions,
		email:        sender,
		logger:       logger.With("component", "auth_service"),
		appBaseURL:   appBaseURL,
	}
}

// Register creates an unconfirmed account, generates confirmation
// materials, and attempts delivery. A delivery failure is logged and
// swallowed — registration still succeeds. No session is issued.
func (s *AuthService) Register(ctx context.Context, name, emailAddr, password string) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &domain.User{
		Name:         name,
		Email:        emailAddr,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.confirmation.Generate(ctx, user); err != nil {
		return nil, err
	}
	s.deliverConfirmation(ctx, user)

	return user, nil
}

// RequestConfirmation redelivers pending confirmation materials, or
// regenerates them first when the pending pair has expired or is close to
// it. The transport layer answers both branches identically.
func (s *AuthService) RequestConfirmation(ctx context.Context, emailAddr string) error {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrEmailNotRegistered
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.Confirmed {
		return domain.ErrAlreadyConfirmed
	}

	if !s.confirmation.HasValidPending(user) {
		if err := s.confirmation.Generate(ctx, user); err != nil {
			return err
		}
	}
	s.deliverConfirmation(ctx, user)

	return nil
}

// ConfirmViaToken confirms an account from the emailed link. The link
// path does not log the user in.
func (s *AuthService) ConfirmViaToken(ctx context.Context, rawToken string) (*domain.User, error) {
	return s.confirmation.ConfirmViaToken(ctx, rawToken)
}

// ConfirmViaOTP confirms an account from the emailed one-time code and
// immediately issues a session for the freshly confirmed user.
func (s *AuthService) ConfirmViaOTP(ctx context.Context, emailAddr, code string) (*domain.User, string, error) {
	user, err := s.confirmation.ConfirmViaOTP(ctx, emailAddr, code)
	if err != nil {
		return nil, "", err
	}

	authToken, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, authToken, nil
}

// Login checks credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller. A correct login
// against an unconfirmed account returns ErrUnconfirmedAccount and no
// token; confirmation materials are regenerated and redelivered only when
// no valid pending pair exists.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (*domain.User, string, error) {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", domain.ErrInvalidCredentials
	}

	if !user.Confirmed {
		if !s.confirmation.HasValidPending(user) {
			if err := s.confirmation.Generate(ctx, user); err != nil {
				return nil, "", err
			}
			s.deliverConfirmation(ctx, user)
		}
		return nil, "", domain.ErrUnconfirmedAccount
	}

	authToken, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, authToken, nil
}

// Logout revokes the presented session. Revoking an absent token is a
// successful no-op.
func (s *AuthService) Logout(ctx context.Context, user *domain.User, authToken string) error {
	if user == nil || authToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, user, authToken)
}

// ResolveCurrentUser is the gate in front of every protected operation.
func (s *AuthService) ResolveCurrentUser(ctx context.Context, authToken string) (*domain.User, error) {
	return s.sessions.Resolve(ctx, authToken)
}

func (s *AuthService) deliverConfirmation(ctx context.Context, user *domain.User) {
	// The link outlives the code by far, so a resend can land after the
	// code has expired. The email still goes out with the link; only the
	// OTP section is dropped.
	otp, _ := s.confirmation.PendingOTP(user)

	msg := email.NewConfirmationMessage(user.Name, s.confirmationURL(user), otp, otpValidityMinutes)
	if err := s.email.Send(ctx, user.Email, msg); err != nil {
		s.logger.ErrorContext(ctx, "send confirmation email", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) confirmationURL(user *domain.User) string {
	return s.appBaseURL + "/auth/confirm/" + user.ConfirmationToken
}
