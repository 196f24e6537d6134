package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rocketmoon/identity/internal/domain"
)

// Purpose tags what a token may be used for. Verify rejects tokens
// presented outside their purpose, so an OTP token can never be replayed
// as a session token.
type Purpose string

const (
	PurposeAuth         Purpose = "auth"
	PurposeConfirmation Purpose = "confirmation"
	PurposeOTP          Purpose = "otp"
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Purpose   Purpose
	Code      string // set only on OTP tokens
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RemainingTTL returns how long the token stays valid from now.
func (c *Claims) RemainingTTL() time.Duration {
	return time.Until(c.ExpiresAt)
}

type signedClaims struct {
	Purpose Purpose `json:"prp"`
	Code    string  `json:"code,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 bearer tokens. All timestamps are
// NumericDate seconds; no other unit is ever serialized.
type Codec struct {
	key []byte
}

func NewCodec(key []byte) *Codec {
	return &Codec{key: key}
}

// Issue signs a token for subject with the given purpose and ttl.
func (c *Codec) Issue(subject string, purpose Purpose, ttl time.Duration) (string, error) {
	return c.issue(subject, purpose, "", ttl)
}

// IssueWithCode signs a token that additionally embeds a one-time code,
// so the raw code never needs server-side storage.
func (c *Codec) IssueWithCode(subject string, purpose Purpose, code string, ttl time.Duration) (string, error) {
	return c.issue(subject, purpose, code, ttl)
}

func (c *Codec) issue(subject string, purpose Purpose, code string, ttl time.Duration) (string, error) {
	// The jti keeps two tokens for the same subject distinct even when
	// issued within the same second. Session revocation removes exact
	// strings from a set, so issued tokens must never collide.
	now := time.Now()
	claims := signedClaims{
		Purpose: purpose,
		Code:    code,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and that the token was issued for
// the expected purpose. Failures map onto the domain taxonomy:
// ErrExpiredToken, ErrMalformedToken, ErrWrongPurpose.
func (c *Codec) Verify(raw string, want Purpose) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &signedClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, domain.ErrMalformedToken
	}

	claims, ok := parsed.Claims.(*signedClaims)
	if !ok || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, domain.ErrMalformedToken
	}
	if claims.Purpose != want {
		return nil, domain.ErrWrongPurpose
	}

	out := &Claims{
		Subject:   claims.Subject,
		Purpose:   claims.Purpose,
		Code:      claims.Code,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
