// Package onetimetokens persists password reset and email verification
// tokens. Only SHA-256 digests of the token values are stored.
package onetimetokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository manages single-use tokens of one purpose.
type Repository interface {
	// Replace stores tokenHash as the only unused token of userID,
	// discarding any previously issued unused token in the same statement.
	Replace(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error

	// FindUnused returns the unused token with the given digest or
	// common.ErrorNotFound.
	FindUnused(ctx context.Context, tokenHash string) (*models.OneTimeToken, error)

	// MarkUsed flips an unused token to used. It reports false when another
	// caller already consumed it.
	MarkUsed(ctx context.Context, tokenHash string) (bool, error)

	// Purge deletes tokens that expired before the given instant.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
