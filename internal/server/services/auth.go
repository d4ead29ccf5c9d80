// Package services contains the server-side auth logic. AuthService composes
// the credential store, password hasher, session token codec, revocation
// ledger and single-use token manager into the public auth operations.
//
// Every exported operation returns nil or a *common.Error; store, hashing and
// codec failures are mapped here and nowhere else.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/gophauth/internal/server/validation"
)

// Session is what Register and Login hand back to the caller.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// PurgeResult counts rows removed by Purge per store.
type PurgeResult struct {
	Revocations        int64
	PasswordResets     int64
	EmailVerifications int64
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ledger      revocations.Repository
	codec       *auth.Codec
	hasher      *auth.Hasher
	tokens      *TokenManager
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      logging.Logger
	now         func() time.Time

	// dummyHash keeps login timing the same for unknown identifiers.
	dummyHash string
}

// NewAuthService fails with common.ErrConfig when the signing secret is absent.
func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	ledger revocations.Repository,
	notifier notify.Notifier,
	cfg *config.Config,
	logger logging.Logger,
	mx *metrics.Metrics,
) (*AuthService, error) {
	codec, err := auth.NewCodec(cfg.SecretKey, cfg.SessionTokenTTL)
	if err != nil {
		return nil, err
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, common.ErrorInternal.WithCause(err)
	}

	return &AuthService{
		db:          db,
		repomanager: m,
		ledger:      ledger,
		codec:       codec,
		hasher:      hasher,
		tokens:      NewTokenManager(m, cfg.PasswordResetTTL, cfg.EmailVerificationTTL),
		notifier:    notifier,
		metrics:     mx,
		logger:      logger.With("module", "auth"),
		now:         time.Now,
		dummyHash:   dummy,
	}, nil
}

// Register creates the user, issues a session token and sends an email
// verification link. Input is expected to be validated already; a
// uniqueness race with the validator surfaces as DuplicateUser.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (_ *Session, err error) {
	defer s.observe("register", &err)

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		UserName:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
	}

	var verificationToken string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		user = created

		verificationToken, err = s.tokens.Issue(ctx, tx, user.ID, models.PurposeEmailVerification)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrDuplicateUser
		}
		return nil, s.storeError(ctx, "register", err)
	}

	token, expiresAt, err := s.codec.Issue(user.ID)
	if err != nil {
		return nil, common.ErrorInternal.WithCause(err)
	}

	s.send(ctx, notify.Message{To: user.Email, Purpose: models.PurposeEmailVerification, Token: verificationToken})

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Login accepts a username or an email as identifier. Unknown identifiers
// and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (_ *Session, err error) {
	defer s.observe("login", &err)

	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.storeError(ctx, "login", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	token, expiresAt, err := s.codec.Issue(user.ID)
	if err != nil {
		return nil, common.ErrorInternal.WithCause(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to its session. The token must
// verify and must not be in the revocation ledger.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Session, error) {
	session, err := s.verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.ledger.IsRevoked(ctx, common.HashToken(token))
	if err != nil {
		return nil, s.storeError(ctx, "authenticate", err)
	}
	if revoked {
		return nil, common.ErrUnauthenticated.WithMessage(common.MsgTokenRevoked)
	}
	return session, nil
}

// Logout revokes token until its natural expiry. A token that is already
// revoked is accepted; alreadyRevoked reports that case.
func (s *AuthService) Logout(ctx context.Context, token string) (alreadyRevoked bool, err error) {
	defer s.observe("logout", &err)

	session, err := s.verify(token)
	if err != nil {
		return false, err
	}

	added, err := s.ledger.Revoke(ctx, common.HashToken(token), session.ExpiresAt)
	if err != nil {
		return false, s.storeError(ctx, "logout", err)
	}
	if added {
		s.metrics.ObserveRevocation()
	}
	return !added, nil
}

// ForgotPassword issues a reset token and sends it when email belongs to a
// user. The result is the same whether or not the account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer s.observe("forgot_password", &err)

	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return s.storeError(ctx, "forgot_password", err)
	}

	token, err := s.tokens.Issue(ctx, s.db, user.ID, models.PurposePasswordReset)
	if err != nil {
		return s.storeError(ctx, "forgot_password", err)
	}

	s.send(ctx, notify.Message{To: user.Email, Purpose: models.PurposePasswordReset, Token: token})
	return nil
}

// SendResetPasswordEmail behaves exactly like ForgotPassword.
func (s *AuthService) SendResetPasswordEmail(ctx context.Context, email string) error {
	return s.ForgotPassword(ctx, email)
}

// ResetPassword redeems a reset token and stores the new password hash in
// the same transaction.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer s.observe("reset_password", &err)

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userID, err := s.tokens.Redeem(ctx, tx, token, models.PurposePasswordReset)
		if err != nil {
			return err
		}
		return s.repomanager.Users(tx).UpdatePassword(ctx, userID, hash)
	})
	return s.redeemError(ctx, "reset_password", err)
}

// VerifyEmail redeems a verification token and marks the email verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (err error) {
	defer s.observe("verify_email", &err)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userID, err := s.tokens.Redeem(ctx, tx, token, models.PurposeEmailVerification)
		if err != nil {
			return err
		}
		return s.repomanager.Users(tx).MarkEmailVerified(ctx, userID)
	})
	return s.redeemError(ctx, "verify_email", err)
}

// ResendVerificationEmail replaces the user's verification token and sends
// the new one. The account must exist and be unverified.
func (s *AuthService) ResendVerificationEmail(ctx context.Context, email string) (err error) {
	defer s.observe("resend_verification_email", &err)

	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewValidationError(common.FieldError{Field: "email", Message: validation.MsgEmailNotFound})
		}
		return s.storeError(ctx, "resend_verification_email", err)
	}
	if user.EmailVerified {
		return common.NewValidationError(common.FieldError{Field: "email", Message: validation.MsgEmailVerified})
	}

	token, err := s.tokens.Issue(ctx, s.db, user.ID, models.PurposeEmailVerification)
	if err != nil {
		return s.storeError(ctx, "resend_verification_email", err)
	}

	s.send(ctx, notify.Message{To: user.Email, Purpose: models.PurposeEmailVerification, Token: token})
	return nil
}

// Purge removes expired ledger entries and single-use tokens.
func (s *AuthService) Purge(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult
	before := s.now()

	n, err := s.ledger.Purge(ctx, before)
	if err != nil {
		return res, s.storeError(ctx, "purge", err)
	}
	res.Revocations = n
	s.metrics.ObservePurge("token_blacklist", n)

	n, err = s.tokens.Purge(ctx, s.db, models.PurposePasswordReset, before)
	if err != nil {
		return res, s.storeError(ctx, "purge", err)
	}
	res.PasswordResets = n
	s.metrics.ObservePurge(models.PurposePasswordReset.Table(), n)

	n, err = s.tokens.Purge(ctx, s.db, models.PurposeEmailVerification, before)
	if err != nil {
		return res, s.storeError(ctx, "purge", err)
	}
	res.EmailVerifications = n
	s.metrics.ObservePurge(models.PurposeEmailVerification.Table(), n)

	return res, nil
}

func (s *AuthService) verify(token string) (*auth.Session, error) {
	if token == "" {
		return nil, common.ErrUnauthenticated.WithMessage(common.MsgNoToken)
	}
	session, err := s.codec.Verify(token)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, common.ErrTokenExpired):
		return nil, common.ErrUnauthenticated.WithMessage(common.MsgTokenExpired)
	default:
		return nil, common.ErrUnauthenticated.WithMessage(common.MsgInvalidToken)
	}
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.NewValidationError(common.FieldError{Field: "password", Message: validation.MsgPasswordTooLong})
		}
		return "", common.ErrorInternal.WithCause(err)
	}
	return hash, nil
}

func (s *AuthService) redeemError(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenUsed):
		return common.ErrInvalidOrExpiredToken
	default:
		return s.storeError(ctx, op, err)
	}
}

func (s *AuthService) storeError(ctx context.Context, op string, err error) error {
	var e *common.Error
	if errors.As(err, &e) {
		return e
	}
	s.logger.Error(ctx, "store failure", "operation", op, "error", err)
	return common.ErrTransientStore.WithCause(err)
}

// send never fails the operation: reporting a delivery error to the caller
// would reveal that the account exists.
func (s *AuthService) send(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn(ctx, "notification failed", "purpose", string(msg.Purpose), "error", err)
	}
}

func (s *AuthService) observe(op string, err *error) {
	outcome := metrics.OutcomeOK
	if *err != nil {
		outcome = string(common.KindOf(*err))
	}
	s.metrics.ObserveOperation(op, outcome)
}
