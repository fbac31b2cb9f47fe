package domain

import "context"

// UserRow represents a user document returned from the database.
// It includes the password hash so the Logic layer can verify credentials.
type UserRow struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
}

// UserRepository defines the data-access contract for user operations.
// Implementations live in internal/core/repository (Core layer).
// The Logic layer depends on this interface only — never on the driver directly.
type UserRepository interface {
	// GetByUsernameOrEmail returns the user matching either the given
	// username or the given email. Returns (nil, nil) when no user is found.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*UserRow, error)

	// GetByID returns the user with the given ID.
	// Returns (nil, nil) when no user is found.
	GetByID(ctx context.Context, userID string) (*UserRow, error)

	// ExistsByUsernameOrEmail returns true when a user with the given
	// username or email already exists.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// Create inserts a new user and returns the generated user ID.
	Create(ctx context.Context, username, email, fullName, passwordHash string) (string, error)

	// UpdatePasswordHash replaces the stored password hash for the user.
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error

	// UpdateLastLogin sets the last_login_at timestamp to now for the user.
	UpdateLastLogin(ctx context.Context, userID string) error
}
