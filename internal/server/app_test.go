package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SecretKey = "test-secret"
	c.BcryptCost = 4
	c.LogLevel = "error"
	return c
}

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	orig := openDB
	openDB = func(string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = orig })
	return mock
}

func TestNewApp_RejectsMissingSecret(t *testing.T) {
	c := testConfig()
	c.SecretKey = ""

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfig))
}

func TestNewApp_OpenDBError(t *testing.T) {
	orig := openDB
	openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }
	t.Cleanup(func() { openDB = orig })

	_, err := NewApp(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error")
}

func TestApp_PurgeRunsAgainstAllStores(t *testing.T) {
	mock := withMockDB(t)

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	mock.ExpectExec(`DELETE FROM token_blacklist`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM password_reset_tokens`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM email_verification_tokens`).WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := app.Purge(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Revocations)
	assert.EqualValues(t, 2, res.PasswordResets)
	assert.EqualValues(t, 1, res.EmailVerifications)

	mock.ExpectClose()
	app.Close()
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_RedisBackend(t *testing.T) {
	mock := withMockDB(t)
	c := testConfig()
	c.RevocationBackend = config.RevocationBackendRedis
	c.RedisAddr = "127.0.0.1:1"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, app.closers, 2)

	mock.ExpectClose()
	app.Close()
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_S3Notifier(t *testing.T) {
	withMockDB(t)
	c := testConfig()
	c.Notifier = config.NotifierS3

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	n, err := app.newNotifier(context.Background())
	require.NoError(t, err)
	_, ok := n.(*notify.S3Outbox)
	assert.True(t, ok)
}
