package postgres

import (
	"context"
	"database/sql"

	"kbapi/internal/model"
	"kbapi/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

const userColumns = `id, username, email, full_name, department, group_name, password_hash, created_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName,
		&u.Department, &u.Group, &u.PasswordHash, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row and returns the stored record.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		INSERT INTO users (id, username, email, full_name, department, group_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q,
		u.ID, u.Username, u.Email, u.FullName,
		u.Department, u.Group, u.PasswordHash, u.CreatedAt,
	))
}

// FindByID fetches a user by id.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

// FindByUsername fetches a user by exact username.
func (r *UserPostgres) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, username))
}

// ExistsByUsernameOrEmail reports whether either identity is taken.
func (r *UserPostgres) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, username, email).Scan(&exists)
	return exists, err
}

// FindOwnerMatch resolves an owner search string case-insensitively against
// username OR full name. Returns sql.ErrNoRows when nobody matches.
func (r *UserPostgres) FindOwnerMatch(ctx context.Context, needle string) (*model.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%'
		ORDER BY id ASC
		LIMIT 1
	`
	return scanUser(r.db.QueryRowContext(ctx, q, needle))
}
