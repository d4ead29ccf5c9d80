package models

import "time"

// Purpose tells single-use tokens of different flows apart. Each purpose is
// stored in its own table.
type Purpose string

const (
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
)

// Table returns the table holding tokens of this purpose.
func (p Purpose) Table() string {
	switch p {
	case PurposePasswordReset:
		return "password_reset_tokens"
	case PurposeEmailVerification:
		return "email_verification_tokens"
	default:
		return ""
	}
}

// OneTimeToken is a short-lived bearer secret for password reset or email
// verification. TokenHash is the SHA-256 digest of the value sent to the user.
type OneTimeToken struct {
	UserID    string
	TokenHash string
	Purpose   Purpose
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Expired reports whether the token can no longer be redeemed at now.
func (t *OneTimeToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
