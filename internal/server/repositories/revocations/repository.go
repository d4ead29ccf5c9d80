// Package revocations stores the digests of session tokens that were
// explicitly logged out before their natural expiry.
package revocations

import (
	"context"
	"time"
)

// Repository is the revocation ledger.
type Repository interface {
	// Revoke records tokenHash until expiresAt. It reports false when the
	// hash was already present.
	Revoke(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether tokenHash is present in the ledger.
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)

	// Purge deletes entries that expired before the given instant and
	// returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
