package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/onetimetokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// TokenManager issues and redeems single-use tokens. Per user and purpose
// a token goes NONE -> ISSUED -> REDEEMED or EXPIRED and never leaves the
// last two states. All coordination happens in the store; callers pass the
// DBTX so redemption can share a transaction with the follow-up update.
type TokenManager struct {
	repomanager repomanager.RepositoryManager
	ttl         map[models.Purpose]time.Duration
	now         func() time.Time
}

func NewTokenManager(m repomanager.RepositoryManager, resetTTL, verificationTTL time.Duration) *TokenManager {
	return &TokenManager{
		repomanager: m,
		ttl: map[models.Purpose]time.Duration{
			models.PurposePasswordReset:     resetTTL,
			models.PurposeEmailVerification: verificationTTL,
		},
		now: time.Now,
	}
}

// Issue returns a fresh 64-char hex token and atomically replaces any
// unused token the user had for purpose.
func (m *TokenManager) Issue(ctx context.Context, db dbx.DBTX, userID string, purpose models.Purpose) (string, error) {
	ttl, ok := m.ttl[purpose]
	if !ok {
		return "", fmt.Errorf("%w: %q", onetimetokens.ErrUnknownPurpose, purpose)
	}
	repo, err := m.repomanager.OneTimeTokens(db, purpose)
	if err != nil {
		return "", err
	}

	token, err := common.MakeRandHexString(common.RandomTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	if err := repo.Replace(ctx, userID, common.HashToken(token), m.now().Add(ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// Redeem consumes token and returns its owner. It fails with
// common.ErrorNotFound for unknown or replaced tokens, common.ErrTokenExpired
// once now >= expires_at (the row stays unused) and common.ErrTokenUsed when
// a concurrent caller won the conditional update.
func (m *TokenManager) Redeem(ctx context.Context, db dbx.DBTX, token string, purpose models.Purpose) (string, error) {
	repo, err := m.repomanager.OneTimeTokens(db, purpose)
	if err != nil {
		return "", err
	}

	hash := common.HashToken(token)
	t, err := repo.FindUnused(ctx, hash)
	if err != nil {
		return "", err
	}
	if t.Expired(m.now()) {
		return "", common.ErrTokenExpired
	}

	ok, err := repo.MarkUsed(ctx, hash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", common.ErrTokenUsed
	}
	return t.UserID, nil
}

// Purge deletes tokens of purpose that expired before the given instant.
func (m *TokenManager) Purge(ctx context.Context, db dbx.DBTX, purpose models.Purpose, before time.Time) (int64, error) {
	repo, err := m.repomanager.OneTimeTokens(db, purpose)
	if err != nil {
		return 0, err
	}
	return repo.Purge(ctx, before)
}
