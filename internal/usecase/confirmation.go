package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rocketmoon/identity/internal/domain"
	"github.com/rocketmoon/identity/internal/repository"
	"github.com/rocketmoon/identity/internal/token"
)

const (
	defaultConfirmationTTL = 24 * time.Hour
	defaultOTPTTL          = 15 * time.Minute

	// Pending materials with less than this much life left are treated as
	// expired and regenerated instead of redelivered.
	confirmationRenewThreshold = time.Hour

	otpLength = 6
)

// ConfirmationFlow drives an account from unconfirmed to confirmed, either
// through the emailed link token or the emailed one-time code.
type ConfirmationFlow struct {
	users repository.UserRepository
	codec *token.Codec

	confirmationTTL time.Duration
	otpTTL          time.Duration
	renewThreshold  time.Duration
}

func NewConfirmationFlow(users repository.UserRepository, codec *token.Codec) *ConfirmationFlow {
	return &ConfirmationFlow{
		users:           users,
		codec:           codec,
		confirmationTTL: defaultConfirmationTTL,
		otpTTL:          defaultOTPTTL,
		renewThreshold:  confirmationRenewThreshold,
	}
}

// Generate issues a fresh confirmation token / OTP token pair, persists
// both in one write, and updates the borrowed user. Calling it again
// simply rotates the pair.
func (f *ConfirmationFlow) Generate(ctx context.Context, user *domain.User) error {
	confirmationToken, err := f.codec.Issue(user.ID, token.PurposeConfirmation, f.confirmationTTL)
	if err != nil {
		return fmt.Errorf("issue confirmation token: %w", err)
	}

	code, err := generateOTPCode(otpLength)
	if err != nil {
		return err
	}
	otpToken, err := f.codec.IssueWithCode(user.ID, token.PurposeOTP, code, f.otpTTL)
	if err != nil {
		return fmt.Errorf("issue otp token: %w", err)
	}

	if err := f.users.SetConfirmationMaterials(ctx, user.ID, confirmationToken, otpToken); err != nil {
		return fmt.Errorf("store confirmation materials: %w", err)
	}

	user.ConfirmationToken = confirmationToken
	user.OTPToken = otpToken
	return nil
}

// HasValidPending reports whether the user's stored confirmation token
// still verifies for them and has enough life left to be worth
// redelivering instead of regenerating.
func (f *ConfirmationFlow) HasValidPending(user *domain.User) bool {
	if user.ConfirmationToken == "" {
		return false
	}
	claims, err := f.codec.Verify(user.ConfirmationToken, token.PurposeConfirmation)
	if err != nil || claims.Subject != user.ID {
		return false
	}
	return claims.RemainingTTL() > f.renewThreshold
}

// PendingOTP extracts the one-time code from the user's stored OTP token,
// for inclusion in the confirmation email. Returns false when no live OTP
// is pending.
func (f *ConfirmationFlow) PendingOTP(user *domain.User) (string, bool) {
	if user.OTPToken == "" {
		return "", false
	}
	claims, err := f.codec.Verify(user.OTPToken, token.PurposeOTP)
	if err != nil || claims.Subject != user.ID || claims.Code == "" {
		return "", false
	}
	return claims.Code, true
}

// ConfirmViaToken confirms the account the emailed link token was issued
// for. Already-confirmed accounts are returned unchanged. The presented
// token must exactly match the stored one, so a rotated-away token cannot
// confirm anything.
func (f *ConfirmationFlow) ConfirmViaToken(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := f.codec.Verify(raw, token.PurposeConfirmation)
	if err != nil {
		return nil, err
	}

	user, err := f.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user.Confirmed {
		return user, nil
	}
	if user.ConfirmationToken != raw {
		return nil, domain.ErrInvalidConfirmationToken
	}

	return f.confirm(ctx, user)
}

// ConfirmViaOTP confirms the account behind email using the one-time code.
// Already-confirmed accounts are returned unchanged. Any mismatch, missing
// pending OTP, or expiry comes back as ErrInvalidOTP.
func (f *ConfirmationFlow) ConfirmViaOTP(ctx context.Context, email, code string) (*domain.User, error) {
	user, err := f.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Confirmed {
		return user, nil
	}

	stored, ok := f.PendingOTP(user)
	if !ok || stored != strings.TrimSpace(code) {
		return nil, domain.ErrInvalidOTP
	}

	return f.confirm(ctx, user)
}

func (f *ConfirmationFlow) confirm(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := f.users.MarkConfirmed(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("mark confirmed: %w", err)
	}
	user.Confirmed = true
	user.ConfirmationToken = ""
	user.OTPToken = ""
	return user, nil
}

func generateOTPCode(length int) (string, error) {
	const digits = "0123456789"

	buf := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}
