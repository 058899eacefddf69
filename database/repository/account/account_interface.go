package accountRepo

import (
	"context"
	"errors"

	"rwandabill/models"
)

var (
	// ErrAccountNotFound is returned when no account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// AccountRepository defines methods for account data access.
type AccountRepository interface {
	// Create inserts a new account. The email must be unused.
	Create(ctx context.Context, account *models.Account) error
	// GetByID retrieves an account by its unique ID.
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// GetByEmail retrieves an account by its normalized email.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	// Update replaces an existing account.
	Update(ctx context.Context, account *models.Account) error
	// ListByStatus returns the accounts with the given approval status,
	// oldest first.
	ListByStatus(ctx context.Context, status models.ApprovalStatus) ([]models.Account, error)
	// CountByRole counts accounts holding the backend role.
	CountByRole(ctx context.Context, role string) (int64, error)
}
