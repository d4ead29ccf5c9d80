package onetimetokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

var ErrUnknownPurpose = errors.New("unknown token purpose")

type PostgresRepository struct {
	db      dbx.DBTX
	purpose models.Purpose
	table   string
}

// NewPostgresRepository binds a repository to the table of purpose.
func NewPostgresRepository(db dbx.DBTX, purpose models.Purpose) (*PostgresRepository, error) {
	table := purpose.Table()
	if table == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}
	return &PostgresRepository{db: db, purpose: purpose, table: table}, nil
}

// Replace relies on the partial unique index on (user_id) WHERE used = FALSE.
func (r *PostgresRepository) Replace(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) WHERE used = FALSE
		DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, created_at = now()
	`, r.table)

	if _, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindUnused(ctx context.Context, tokenHash string) (*models.OneTimeToken, error) {
	query := fmt.Sprintf(`
		SELECT user_id, token_hash, expires_at, used, created_at
		FROM %s
		WHERE token_hash = $1 AND used = FALSE
	`, r.table)

	t := &models.OneTimeToken{Purpose: r.purpose}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, tokenHash string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET used = TRUE
		WHERE token_hash = $1 AND used = FALSE
	`, r.table)

	res, err := r.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires_at < $1
	`, r.table)

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
