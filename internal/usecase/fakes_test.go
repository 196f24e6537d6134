package usecase_test

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rocketmoon/identity/internal/domain"
	"github.com/rocketmoon/identity/internal/email"
)

// memUserRepo is an in-memory UserRepository with the same delta
// semantics as the Postgres adapter, for multi-step scenario tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrDuplicateEmail
		}
	}

	stored := cloneUser(user)
	stored.ID = uuid.NewString()
	r.users[stored.ID] = stored
	return cloneUser(stored), nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) SetConfirmationMaterials(_ context.Context, userID, confirmationToken, otpToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.ConfirmationToken = confirmationToken
		u.OTPToken = otpToken
	}
	return nil
}

func (r *memUserRepo) MarkConfirmed(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.Confirmed = true
		u.ConfirmationToken = ""
		u.OTPToken = ""
	}
	return nil
}

func (r *memUserRepo) AddAuthToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok && !slices.Contains(u.AuthTokens, token) {
		u.AuthTokens = append(u.AuthTokens, token)
	}
	return nil
}

func (r *memUserRepo) RemoveAuthToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.AuthTokens = slices.DeleteFunc(u.AuthTokens, func(t string) bool { return t == token })
	}
	return nil
}

func (r *memUserRepo) ListSessionHolders(_ context.Context, limit int) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.User
	for _, u := range r.users {
		if len(out) == limit {
			break
		}
		if len(u.AuthTokens) > 0 {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// mustGet returns the stored record directly, for assertions on
// persisted state.
func (r *memUserRepo) mustGet(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.AuthTokens = slices.Clone(u.AuthTokens)
	return &c
}

// fakeSender records outbound emails and can be told to fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

type sentEmail struct {
	to  string
	msg email.Message
}

func (s *fakeSender) Send(_ context.Context, to string, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: to, msg: msg})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
