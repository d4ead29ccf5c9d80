// Package validation checks request input before it reaches the auth
// service. Failures are returned as a common.Error of KindValidation
// carrying one FieldError per rejected field.
package validation

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

const (
	MsgUsernameRequired     = "Username is required"
	MsgUsernameTooShort     = "Username must be at least 3 characters long"
	MsgUsernameAlphanumeric = "Username must contain only letters and numbers"
	MsgUsernameTaken        = "Username already exists"
	MsgEmailRequired        = "Email is required"
	MsgEmailInvalid         = "Invalid email address"
	MsgEmailTaken           = "Email already exists"
	MsgEmailNotFound        = "Email not found"
	MsgEmailVerified        = "Email is already verified"
	MsgPasswordRequired     = "Password is required"
	MsgPasswordTooShort     = "Password must be at least 8 characters long"
	MsgPasswordTooLong      = "Password must be at most 72 bytes long"
	MsgPasswordWeak         = "Password must be strong"
	MsgTokenRequired        = "Token is required"
	MsgIdentifierRequired   = "Username or email is required"
)

// UserLookup is the store access needed for uniqueness and existence checks.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUserName(ctx context.Context, userName string) (*models.User, error)
}

type Validator struct {
	users UserLookup
}

func New(users UserLookup) *Validator {
	return &Validator{users: users}
}

// Registration validates and normalizes a sign-up request in place.
func (v *Validator) Registration(ctx context.Context, username, email *string, password string) error {
	*username = strings.TrimSpace(*username)
	*email = strings.TrimSpace(*email)

	var fields []common.FieldError

	if msg := UsernameFormat(*username); msg != "" {
		fields = append(fields, common.FieldError{Field: "username", Message: msg})
	} else {
		taken, err := v.exists(ctx, v.users.GetUserByUserName, *username)
		if err != nil {
			return err
		}
		if taken {
			fields = append(fields, common.FieldError{Field: "username", Message: MsgUsernameTaken})
		}
	}

	if msg := EmailFormat(*email); msg != "" {
		fields = append(fields, common.FieldError{Field: "email", Message: msg})
	} else {
		taken, err := v.exists(ctx, v.users.GetUserByEmail, *email)
		if err != nil {
			return err
		}
		if taken {
			fields = append(fields, common.FieldError{Field: "email", Message: MsgEmailTaken})
		}
	}

	if msg := PasswordStrength(password); msg != "" {
		fields = append(fields, common.FieldError{Field: "password", Message: msg})
	}

	return result(fields)
}

// Login only requires both fields to be present.
func (v *Validator) Login(identifier, password string) error {
	var fields []common.FieldError
	if strings.TrimSpace(identifier) == "" {
		fields = append(fields, common.FieldError{Field: "username", Message: MsgIdentifierRequired})
	}
	if password == "" {
		fields = append(fields, common.FieldError{Field: "password", Message: MsgPasswordRequired})
	}
	return result(fields)
}

// Email checks the format of an address used for password recovery.
// Existence is deliberately not checked.
func (v *Validator) Email(email *string) error {
	*email = strings.TrimSpace(*email)
	if msg := EmailFormat(*email); msg != "" {
		return result([]common.FieldError{{Field: "email", Message: msg}})
	}
	return nil
}

// ResetPassword validates a token and the replacement password.
func (v *Validator) ResetPassword(token *string, password string) error {
	*token = strings.TrimSpace(*token)
	var fields []common.FieldError
	if *token == "" {
		fields = append(fields, common.FieldError{Field: "token", Message: MsgTokenRequired})
	}
	if msg := PasswordStrength(password); msg != "" {
		fields = append(fields, common.FieldError{Field: "password", Message: msg})
	}
	return result(fields)
}

func (v *Validator) Token(token *string) error {
	*token = strings.TrimSpace(*token)
	if *token == "" {
		return result([]common.FieldError{{Field: "token", Message: MsgTokenRequired}})
	}
	return nil
}

// ResendVerification requires an existing account whose email is not yet
// verified.
func (v *Validator) ResendVerification(ctx context.Context, email *string) error {
	if err := v.Email(email); err != nil {
		return err
	}

	u, err := v.users.GetUserByEmail(ctx, *email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return result([]common.FieldError{{Field: "email", Message: MsgEmailNotFound}})
		}
		return common.ErrTransientStore.WithCause(err)
	}
	if u.EmailVerified {
		return result([]common.FieldError{{Field: "email", Message: MsgEmailVerified}})
	}
	return nil
}

func (v *Validator) exists(ctx context.Context, get func(context.Context, string) (*models.User, error), key string) (bool, error) {
	_, err := get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, common.ErrTransientStore.WithCause(err)
	}
}

func result(fields []common.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return common.NewValidationError(fields...)
}

// UsernameFormat returns the first rule username breaks, or "".
func UsernameFormat(username string) string {
	switch {
	case username == "":
		return MsgUsernameRequired
	case len([]rune(username)) < MinUsernameLength:
		return MsgUsernameTooShort
	}
	for _, r := range username {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return MsgUsernameAlphanumeric
		}
	}
	return ""
}

// EmailFormat accepts a bare addr-spec whose domain has at least one dot.
func EmailFormat(email string) string {
	if email == "" {
		return MsgEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return MsgEmailInvalid
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return MsgEmailInvalid
	}
	return ""
}

// PasswordStrength requires 8..72 bytes with a lower and upper case letter,
// a digit and a symbol.
func PasswordStrength(password string) string {
	switch {
	case password == "":
		return MsgPasswordRequired
	case len([]rune(password)) < MinPasswordLength:
		return MsgPasswordTooShort
	case len(password) > MaxPasswordBytes:
		return MsgPasswordTooLong
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !(lower && upper && digit && symbol) {
		return MsgPasswordWeak
	}
	return ""
}
