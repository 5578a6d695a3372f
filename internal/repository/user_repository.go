package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

// UserRepository defines persistence access for accounts and their reset credentials.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdatePassword rewrites the hash and clears any pending reset credential.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// SetResetToken overwrites the pending reset digest and expiry.
	SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error
	// ClearResetToken drops the pending credential only if it is still digest,
	// so a newer request is never wiped out by an older rollback.
	ClearResetToken(ctx context.Context, id, digest string) error
	// ConsumeResetToken swaps in passwordHash for the user holding digest with
	// an expiry after now, clearing the credential in the same statement.
	ConsumeResetToken(ctx context.Context, digest string, now time.Time, passwordHash string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, department, register_number,
               reset_token_hash, reset_token_expiry, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, department, register_number)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Department,
		user.RegisterNumber,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, role=$2, department=$3, register_number=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.Role,
		user.Department,
		user.RegisterNumber,
		user.ID,
	).Scan(&user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
        UPDATE users SET password_hash=$1, reset_token_hash=NULL, reset_token_expiry=NULL, updated_at=NOW()
        WHERE id=$2`
	return execOne(ctx, r.pool, query, passwordHash, id)
}

func (r *userRepository) SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error {
	const query = `
        UPDATE users SET reset_token_hash=$1, reset_token_expiry=$2, updated_at=NOW()
        WHERE id=$3`
	return execOne(ctx, r.pool, query, digest, expiresAt, id)
}

func (r *userRepository) ClearResetToken(ctx context.Context, id, digest string) error {
	const query = `
        UPDATE users SET reset_token_hash=NULL, reset_token_expiry=NULL, updated_at=NOW()
        WHERE id=$1 AND reset_token_hash=$2`
	_, err := r.pool.Exec(ctx, query, id, digest)
	return err
}

func (r *userRepository) ConsumeResetToken(ctx context.Context, digest string, now time.Time, passwordHash string) (*domain.User, error) {
	query := `
        UPDATE users SET password_hash=$1, reset_token_hash=NULL, reset_token_expiry=NULL, updated_at=NOW()
        WHERE reset_token_hash=$2 AND reset_token_expiry > $3
        RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, passwordHash, digest, now))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Department,
		&user.RegisterNumber,
		&user.ResetTokenHash,
		&user.ResetTokenExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func execOne(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) error {
	cmd, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
