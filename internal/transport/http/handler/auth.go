package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rocketmoon/identity/internal/domain"
	"github.com/rocketmoon/identity/internal/metrics"
	"github.com/rocketmoon/identity/internal/transport/http/middleware"
)

// authServicer is the subset of AuthService the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authServicer interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	RequestConfirmation(ctx context.Context, email string) error
	ConfirmViaToken(ctx context.Context, rawToken string) (*domain.User, error)
	ConfirmViaOTP(ctx context.Context, email, code string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	Logout(ctx context.Context, user *domain.User, authToken string) error
}

type AuthHandler struct {
	auth   authServicer
	logger *slog.Logger
}

func NewAuthHandler(auth authServicer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With("component", "auth_handler"),
	}
}

// userResponse is the public account shape. Password hashes and the token
// sets never leave the service.
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Confirmed: u.Confirmed,
		CreatedAt: u.CreatedAt,
	}
}

type registerRequest struct {
	Name                 string `json:"name"                 binding:"required"`
	Email                string `json:"email"                binding:"required,email"`
	Password             string `json:"password"             binding:"required,min=6,max=40"`
	PasswordConfirmation string `json:"passwordConfirmation" binding:"required,eqfield=Password"`
}

// POST /auth/register
// 201 on success; no session is issued until the account is confirmed.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errInvalidInput})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": errDuplicateEmail})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "register", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	metrics.RegistrationsTotal.Inc()
	c.JSON(http.StatusCreated, gin.H{"message": msgRegistered, "user": toUserResponse(user)})
}

type requestConfirmationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /auth/confirm/resend
// Answers identically whether the email is unknown, unconfirmed, or
// already confirmed, so the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) RequestConfirmation(c *gin.Context) {
	var req requestConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errInvalidInput})
		return
	}

	err := h.auth.RequestConfirmation(c.Request.Context(), req.Email)
	switch {
	case err == nil,
		errors.Is(err, domain.ErrEmailNotRegistered),
		errors.Is(err, domain.ErrAlreadyConfirmed):
	default:
		h.logger.ErrorContext(c.Request.Context(), "request confirmation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msgConfirmationSent})
}

// GET /auth/confirm/:token
// The link path confirms the account but does not log the user in.
func (h *AuthHandler) Confirm(c *gin.Context) {
	user, err := h.auth.ConfirmViaToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedToken),
			errors.Is(err, domain.ErrExpiredToken),
			errors.Is(err, domain.ErrWrongPurpose),
			errors.Is(err, domain.ErrInvalidConfirmationToken),
			errors.Is(err, domain.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidConfToken})
		default:
			h.logger.ErrorContext(c.Request.Context(), "confirm via token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	metrics.ConfirmationsTotal.WithLabelValues("link").Inc()
	c.JSON(http.StatusOK, gin.H{"message": msgConfirmed, "user": toUserResponse(user)})
}

type confirmOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"   binding:"required"`
}

const otpCodeLength = 6

// POST /auth/confirm/otp
// A successful OTP confirmation logs the user in immediately. Codes
// arrive hand-typed or pasted, so surrounding whitespace is stripped
// before the length check.
func (h *AuthHandler) ConfirmOTP(c *gin.Context) {
	var req confirmOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errInvalidInput})
		return
	}

	code := strings.TrimSpace(req.OTP)
	if len(code) != otpCodeLength {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errInvalidInput})
		return
	}

	user, authToken, err := h.auth.ConfirmViaOTP(c.Request.Context(), req.Email, code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidOTP), errors.Is(err, domain.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidOTP})
		default:
			h.logger.ErrorContext(c.Request.Context(), "confirm via otp", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	metrics.ConfirmationsTotal.WithLabelValues("otp").Inc()
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user), "authToken": authToken})
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=40"`
}

// POST /auth/login
// 401 for bad credentials (identical for unknown email and wrong
// password), 423 when the account exists but is unconfirmed.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errInvalidInput})
		return
	}

	user, authToken, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		case errors.Is(err, domain.ErrUnconfirmedAccount):
			metrics.LoginsTotal.WithLabelValues("unconfirmed").Inc()
			c.JSON(http.StatusLocked, gin.H{"error": errUnconfirmed})
		default:
			h.logger.ErrorContext(c.Request.Context(), "login", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user), "authToken": authToken})
}

// DELETE /auth/logout
// Always answers 200, even for an unauthenticated or already-logged-out
// caller. A storage failure is logged but not surfaced.
func (h *AuthHandler) Logout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	authToken := middleware.AuthToken(c)

	if err := h.auth.Logout(c.Request.Context(), user, authToken); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "logout", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": msgLoggedOut, "user": nil, "authToken": nil})
}

// GET /auth/me
// Runs behind the auth middleware; 423 until the account is confirmed.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}
	if !user.Confirmed {
		c.JSON(http.StatusLocked, gin.H{"error": errUnconfirmed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}
