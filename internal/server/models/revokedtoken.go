package models

import "time"

// RevokedToken is a revocation ledger entry. Only the SHA-256 digest of the
// session token is kept. The entry is garbage once ExpiresAt has passed.
type RevokedToken struct {
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
