// Package users declares the credential store contract: persisted user
// records with unique username and email.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines point lookups and updates on user records.
type Repository interface {
	// Create inserts user. A username or email collision yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin finds a user whose username or email equals identifier.
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)

	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUserName(ctx context.Context, userName string) (*models.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error

	// MarkEmailVerified sets email_verified to true. It is idempotent.
	MarkEmailVerified(ctx context.Context, userID string) error
}
