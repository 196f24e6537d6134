package domain

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email is already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so a failed login never reveals which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnconfirmedAccount means the credentials checked out but the
	// account has not confirmed its email yet.
	ErrUnconfirmedAccount = errors.New("account is pending email confirmation")

	ErrEmailNotRegistered = errors.New("email is not registered")
	ErrAlreadyConfirmed   = errors.New("account is already confirmed")

	ErrMalformedToken = errors.New("token is malformed or has a bad signature")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongPurpose   = errors.New("token was issued for a different purpose")

	// ErrRevokedToken means the token verifies cryptographically but is no
	// longer a member of the user's live session set.
	ErrRevokedToken = errors.New("token has been revoked")

	ErrInvalidConfirmationToken = errors.New("invalid confirmation token")
	ErrInvalidOTP               = errors.New("invalid otp")
)
