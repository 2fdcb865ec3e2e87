package repository

import (
	"errors"

	"identity-core/pkg/database"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by mutations that matched no live row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique email or username is already taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a conditional write finds the row already
	// in the target state.
	ErrConflict = errors.New("conflicting state")
)

// Repository groups the credential store collaborators.
type Repository struct {
	User UserRepository
	OTP  OTPRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User: NewUserRepository(db, log),
		OTP:  NewOTPRepository(db, log),
	}
}
