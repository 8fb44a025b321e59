package repository

import (
	"context"

	"kbapi/internal/model"
)

// UserRepository defines data access for user accounts.
type UserRepository interface {
	// Create inserts a new user row and returns the stored record.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByID returns a user by id.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername returns a user by exact username.
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// ExistsByUsernameOrEmail reports whether either identity is taken.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// FindOwnerMatch resolves an owner search string case-insensitively
	// against username OR full name, returning the first match by id.
	FindOwnerMatch(ctx context.Context, needle string) (*model.User, error)
}
