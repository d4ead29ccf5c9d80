// Package common defines shared constants and sentinel errors used across
// the server layers of GophAuth. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Session token codec errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Single-use token errors.
	ErrTokenUsed = errors.New("token already used")
)
