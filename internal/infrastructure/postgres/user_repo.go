package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rocketmoon/identity/internal/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, confirmed,
	confirmation_token, otp_token, auth_tokens, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		user.Name, user.Email, user.PasswordHash,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) SetConfirmationMaterials(ctx context.Context, userID, confirmationToken, otpToken string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET confirmation_token = $2, otp_token = $3, updated_at = NOW()
		WHERE id = $1`,
		userID, confirmationToken, otpToken,
	)
	if err != nil {
		return fmt.Errorf("set confirmation materials: %w", err)
	}
	return nil
}

func (r *UserRepository) MarkConfirmed(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET confirmed = TRUE, confirmation_token = '', otp_token = '', updated_at = NOW()
		WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}
	return nil
}

// AddAuthToken appends with an in-database array delta so two concurrent
// logins cannot overwrite each other's session. The membership guard keeps
// the column a set under retries.
func (r *UserRepository) AddAuthToken(ctx context.Context, userID, token string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET auth_tokens = array_append(auth_tokens, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY (auth_tokens))`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("add auth token: %w", err)
	}
	return nil
}

// RemoveAuthToken is the delta counterpart of AddAuthToken. Removing a
// token that is not present matches zero rows and succeeds.
func (r *UserRepository) RemoveAuthToken(ctx context.Context, userID, token string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET auth_tokens = array_remove(auth_tokens, $2), updated_at = NOW()
		WHERE id = $1`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("remove auth token: %w", err)
	}
	return nil
}

func (r *UserRepository) ListSessionHolders(ctx context.Context, limit int) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE cardinality(auth_tokens) > 0
		ORDER BY updated_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list session holders: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list session holders: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Confirmed,
		&u.ConfirmationToken, &u.OTPToken, &u.AuthTokens,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
