package onetimetokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

func newRepoWithMock(t *testing.T, purpose models.Purpose) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	repo, err := NewPostgresRepository(db, purpose)
	require.NoError(t, err)
	return repo, mock, db
}

func TestNewPostgresRepository_UnknownPurpose(t *testing.T) {
	_, err := NewPostgresRepository(nil, models.Purpose("magic_link"))
	assert.ErrorIs(t, err, ErrUnknownPurpose)
}

func TestReplace_UsesPurposeTable(t *testing.T) {
	tests := []struct {
		purpose models.Purpose
		table   string
	}{
		{models.PurposePasswordReset, "password_reset_tokens"},
		{models.PurposeEmailVerification, "email_verification_tokens"},
	}

	for _, tt := range tests {
		t.Run(string(tt.purpose), func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t, tt.purpose)
			defer db.Close()

			q := `(?s)^\s*INSERT\s+INTO\s+` + tt.table + `\s*\(user_id,\s*token_hash,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*` +
				`ON\s+CONFLICT\s*\(user_id\)\s*WHERE\s+used\s*=\s*FALSE\s*DO\s+UPDATE\s+SET\s+token_hash\s*=\s*EXCLUDED\.token_hash`
			exp := time.Now().Add(time.Hour)
			mock.ExpectExec(q).WithArgs("u-1", "h1", exp).WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, repo.Replace(context.Background(), "u-1", "h1", exp))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReplace_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, models.PurposePasswordReset)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+password_reset_tokens`).WillReturnError(errors.New("fk violation"))

	err := repo.Replace(context.Background(), "u-1", "h1", time.Now())
	assert.ErrorContains(t, err, "db error: fk violation")
}

func TestFindUnused(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, models.PurposeEmailVerification)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+user_id,\s*token_hash,\s*expires_at,\s*used,\s*created_at\s+FROM\s+email_verification_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE\s*$`
	exp := time.Now().Add(time.Hour)
	created := time.Now()

	mock.ExpectQuery(q).WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "token_hash", "expires_at", "used", "created_at"}).
			AddRow("u-1", "h1", exp, false, created))
	mock.ExpectQuery(q).WithArgs("h2").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs("h3").WillReturnError(errors.New("boom"))

	got, err := repo.FindUnused(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, &models.OneTimeToken{
		UserID:    "u-1",
		TokenHash: "h1",
		Purpose:   models.PurposeEmailVerification,
		ExpiresAt: exp,
		CreatedAt: created,
	}, got)

	_, err = repo.FindUnused(context.Background(), "h2")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.FindUnused(context.Background(), "h3")
	assert.ErrorContains(t, err, "db error: boom")
}

func TestMarkUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, models.PurposePasswordReset)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+password_reset_tokens\s+SET\s+used\s*=\s*TRUE\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE\s*$`
	mock.ExpectExec(q).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("h1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkUsed(context.Background(), "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(context.Background(), "h1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, models.PurposePasswordReset)
	defer db.Close()

	before := time.Now()
	mock.ExpectExec(`(?s)^\s*DELETE\s+FROM\s+password_reset_tokens\s+WHERE\s+expires_at\s*<\s*\$1\s*$`).
		WithArgs(before).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.Purge(context.Background(), before)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
