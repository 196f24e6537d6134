package handler_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rocketmoon/identity/internal/domain"
	"github.com/rocketmoon/identity/internal/transport/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAuthService implements the unexported authServicer interface via
// method matching.
type fakeAuthService struct {
	register            func(ctx context.Context, name, email, password string) (*domain.User, error)
	requestConfirmation func(ctx context.Context, email string) error
	confirmViaToken     func(ctx context.Context, rawToken string) (*domain.User, error)
	confirmViaOTP       func(ctx context.Context, email, code string) (*domain.User, string, error)
	login               func(ctx context.Context, email, password string) (*domain.User, string, error)
	logout              func(ctx context.Context, user *domain.User, authToken string) error
}

func (f *fakeAuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	return f.register(ctx, name, email, password)
}

func (f *fakeAuthService) RequestConfirmation(ctx context.Context, email string) error {
	return f.requestConfirmation(ctx, email)
}

func (f *fakeAuthService) ConfirmViaToken(ctx context.Context, rawToken string) (*domain.User, error) {
	return f.confirmViaToken(ctx, rawToken)
}

func (f *fakeAuthService) ConfirmViaOTP(ctx context.Context, email, code string) (*domain.User, string, error) {
	return f.confirmViaOTP(ctx, email, code)
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	return f.login(ctx, email, password)
}

func (f *fakeAuthService) Logout(ctx context.Context, user *domain.User, authToken string) error {
	return f.logout(ctx, user, authToken)
}

var testUser = &domain.User{ID: "user-1", Name: "Ada", Email: "ada@example.com", Confirmed: true}

func newTestEngine(svc *fakeAuthService) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := handler.NewAuthHandler(svc, logger)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/confirm/resend", h.RequestConfirmation)
	r.POST("/auth/confirm/otp", h.ConfirmOTP)
	r.GET("/auth/confirm/:token", h.Confirm)
	r.DELETE("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

// ---- Register ----

func TestRegister_Success_Returns201(t *testing.T) {
	svc := &fakeAuthService{
		register: func(_ context.Context, _, _, _ string) (*domain.User, error) {
			return testUser, nil
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"secret1","passwordConfirmation":"secret1"}`)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if strings.Contains(w.Body.String(), "passwordHash") {
		t.Error("response leaks the password hash field")
	}
}

func TestRegister_DuplicateEmail_Returns409(t *testing.T) {
	svc := &fakeAuthService{
		register: func(_ context.Context, _, _, _ string) (*domain.User, error) {
			return nil, domain.ErrDuplicateEmail
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/register",
		`{"name":"Ada","email":"ada@example.com","password":"secret1","passwordConfirmation":"secret1"}`)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRegister_ValidationFailures_Return422(t *testing.T) {
	svc := &fakeAuthService{}
	bodies := map[string]string{
		"bad json":         `{not json}`,
		"bad email":        `{"name":"Ada","email":"nope","password":"secret1","passwordConfirmation":"secret1"}`,
		"short password":   `{"name":"Ada","email":"ada@example.com","password":"abc","passwordConfirmation":"abc"}`,
		"mismatch confirm": `{"name":"Ada","email":"ada@example.com","password":"secret1","passwordConfirmation":"secret2"}`,
		"missing name":     `{"email":"ada@example.com","password":"secret1","passwordConfirmation":"secret1"}`,
	}
	for name, body := range bodies {
		if w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/register", body); w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status = %d, want 422", name, w.Code)
		}
	}
}

// ---- Login ----

func TestLogin_Success_Returns200WithToken(t *testing.T) {
	svc := &fakeAuthService{
		login: func(_ context.Context, _, _ string) (*domain.User, string, error) {
			return testUser, "session-token", nil
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"secret1"}`)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "session-token") {
		t.Error("response does not carry the auth token")
	}
}

func TestLogin_InvalidCredentials_Returns401(t *testing.T) {
	svc := &fakeAuthService{
		login: func(_ context.Context, _, _ string) (*domain.User, string, error) {
			return nil, "", domain.ErrInvalidCredentials
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"wrong-pass"}`)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_Unconfirmed_Returns423(t *testing.T) {
	svc := &fakeAuthService{
		login: func(_ context.Context, _, _ string) (*domain.User, string, error) {
			return nil, "", domain.ErrUnconfirmedAccount
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"secret1"}`)

	if w.Code != http.StatusLocked {
		t.Errorf("status = %d, want 423", w.Code)
	}
	if strings.Contains(w.Body.String(), "authToken\":\"") {
		t.Error("unconfirmed login leaked a token")
	}
}

func TestLogin_InternalError_Returns500(t *testing.T) {
	svc := &fakeAuthService{
		login: func(_ context.Context, _, _ string) (*domain.User, string, error) {
			return nil, "", errors.New("db down")
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"secret1"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Error("response leaks internal error detail")
	}
}

// ---- Confirm (link) ----

func TestConfirm_ValidToken_Returns200(t *testing.T) {
	svc := &fakeAuthService{
		confirmViaToken: func(_ context.Context, raw string) (*domain.User, error) {
			if raw != "the-token" {
				t.Errorf("token = %q, want the-token", raw)
			}
			return testUser, nil
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodGet, "/auth/confirm/the-token", "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestConfirm_TokenFailures_Return401(t *testing.T) {
	for _, failure := range []error{
		domain.ErrMalformedToken,
		domain.ErrExpiredToken,
		domain.ErrWrongPurpose,
		domain.ErrInvalidConfirmationToken,
		domain.ErrUserNotFound,
	} {
		svc := &fakeAuthService{
			confirmViaToken: func(_ context.Context, _ string) (*domain.User, error) {
				return nil, failure
			},
		}
		if w := doJSON(newTestEngine(svc), http.MethodGet, "/auth/confirm/bad-token", ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", failure, w.Code)
		}
	}
}

// ---- Confirm (OTP) ----

func TestConfirmOTP_Success_Returns200WithToken(t *testing.T) {
	svc := &fakeAuthService{
		confirmViaOTP: func(_ context.Context, _, _ string) (*domain.User, string, error) {
			return testUser, "fresh-session", nil
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/confirm/otp",
		`{"email":"ada@example.com","otp":"123456"}`)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "fresh-session") {
		t.Error("otp confirmation did not return the auto-login token")
	}
}

func TestConfirmOTP_InvalidOTP_Returns401(t *testing.T) {
	for _, failure := range []error{domain.ErrInvalidOTP, domain.ErrUserNotFound} {
		svc := &fakeAuthService{
			confirmViaOTP: func(_ context.Context, _, _ string) (*domain.User, string, error) {
				return nil, "", failure
			},
		}
		w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/confirm/otp",
			`{"email":"ada@example.com","otp":"000000"}`)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", failure, w.Code)
		}
	}
}

func TestConfirmOTP_WhitespacePaddedCodeAccepted(t *testing.T) {
	svc := &fakeAuthService{
		confirmViaOTP: func(_ context.Context, _, code string) (*domain.User, string, error) {
			if code != "123456" {
				t.Errorf("code = %q, want trimmed 123456", code)
			}
			return testUser, "fresh-session", nil
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/confirm/otp",
		`{"email":"ada@example.com","otp":" 123456 "}`)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for a pasted code with padding", w.Code)
	}
}

func TestConfirmOTP_BadShape_Returns422(t *testing.T) {
	svc := &fakeAuthService{}
	for name, body := range map[string]string{
		"too short":        `{"email":"ada@example.com","otp":"123"}`,
		"only whitespace":  `{"email":"ada@example.com","otp":"   "}`,
		"padded too short": `{"email":"ada@example.com","otp":" 123 "}`,
	} {
		w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/confirm/otp", body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status = %d, want 422", name, w.Code)
		}
	}
}

// ---- RequestConfirmation ----

func TestRequestConfirmation_IdenticalAnswerForAllBranches(t *testing.T) {
	// Unknown emails and already-confirmed accounts must be
	// indistinguishable from the happy path.
	for name, failure := range map[string]error{
		"ok":                nil,
		"unknown email":     domain.ErrEmailNotRegistered,
		"already confirmed": domain.ErrAlreadyConfirmed,
	} {
		svc := &fakeAuthService{
			requestConfirmation: func(_ context.Context, _ string) error { return failure },
		}
		w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/confirm/resend",
			`{"email":"ada@example.com"}`)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", name, w.Code)
		}
	}
}

func TestRequestConfirmation_BadEmail_Returns422(t *testing.T) {
	svc := &fakeAuthService{}
	w := doJSON(newTestEngine(svc), http.MethodPost, "/auth/confirm/resend",
		`{"email":"not-an-email"}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

// ---- Logout ----

func TestLogout_WithoutSession_Returns200(t *testing.T) {
	svc := &fakeAuthService{
		logout: func(_ context.Context, user *domain.User, authToken string) error {
			if user != nil || authToken != "" {
				t.Errorf("logout called with user=%v token=%q, want nil/empty", user, authToken)
			}
			return nil
		},
	}
	w := doJSON(newTestEngine(svc), http.MethodDelete, "/auth/logout", "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"user":null`) {
		t.Errorf("body %q does not null out the user", w.Body.String())
	}
}

func TestLogout_StorageError_StillReturns200(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc := &fakeAuthService{
		logout: func(_ context.Context, _ *domain.User, _ string) error {
			return errors.New("db down")
		},
	}
	h := handler.NewAuthHandler(svc, logger)

	// Simulate OptionalAuth having resolved a session.
	r := gin.New()
	r.DELETE("/auth/logout", func(c *gin.Context) {
		c.Set("currentUser", testUser)
		c.Set("authToken", "session-token")
	}, h.Logout)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (logout never fails)", w.Code)
	}
}

// ---- Me ----

func meEngine(user *domain.User) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := handler.NewAuthHandler(&fakeAuthService{}, logger)

	r := gin.New()
	r.GET("/auth/me", func(c *gin.Context) {
		if user != nil {
			c.Set("currentUser", user)
		}
	}, h.Me)
	return r
}

func TestMe_Confirmed_Returns200(t *testing.T) {
	w := httptest.NewRecorder()
	meEngine(testUser).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), testUser.Email) {
		t.Error("body does not carry the profile")
	}
}

func TestMe_Unconfirmed_Returns423(t *testing.T) {
	unconfirmed := &domain.User{ID: "user-2", Name: "Eve", Email: "eve@example.com"}
	w := httptest.NewRecorder()
	meEngine(unconfirmed).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if w.Code != http.StatusLocked {
		t.Errorf("status = %d, want 423", w.Code)
	}
}

func TestMe_NoSession_Returns401(t *testing.T) {
	w := httptest.NewRecorder()
	meEngine(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
