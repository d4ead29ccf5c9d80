package common

import (
	"errors"
	"fmt"
)

// Kind classifies the failure of an auth operation. It is the only error
// information that crosses the service boundary; transports map each Kind
// to a response.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindDuplicateUser         Kind = "duplicate_user"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindUnauthenticated       Kind = "unauthenticated"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindConfig                Kind = "config"
	KindTransientStore        Kind = "transient_store"
	KindInternal              Kind = "internal"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the tagged error returned by service operations.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Cause   error
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Fields: e.Fields, Cause: cause}
}

// WithMessage returns a copy of e with a different message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Message: message, Fields: e.Fields, Cause: e.Cause}
}

// KindOf extracts the Kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// NewValidationError builds a KindValidation error carrying field errors.
func NewValidationError(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

var (
	ErrValidation            = NewError(KindValidation, "validation failed")
	ErrDuplicateUser         = NewError(KindDuplicateUser, "User already exists")
	ErrInvalidCredentials    = NewError(KindInvalidCredentials, "Invalid credentials")
	ErrUnauthenticated       = NewError(KindUnauthenticated, "Invalid token")
	ErrInvalidOrExpiredToken = NewError(KindInvalidOrExpiredToken, "Invalid or expired token")
	ErrConfig                = NewError(KindConfig, "Server configuration error")
	ErrTransientStore        = NewError(KindTransientStore, "Service temporarily unavailable")
	ErrorInternal            = NewError(KindInternal, "Internal server error")
)

// Messages attached to ErrUnauthenticated.
const (
	MsgNoToken      = "No token provided"
	MsgInvalidToken = "Invalid token"
	MsgTokenExpired = "Token expired"
	MsgTokenRevoked = "Token has been revoked"
)
