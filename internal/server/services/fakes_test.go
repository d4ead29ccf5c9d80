package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/onetimetokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/revocations"
	usersrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.users {
		if existing.UserName == u.UserName || existing.Email == strings.ToLower(u.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *u
	cp.Email = strings.ToLower(cp.Email)
	cp.CreatedAt = time.Now()
	f.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, identifier string) (*models.User, error) {
	return f.find(func(u *models.User) bool {
		return u.UserName == identifier || u.Email == strings.ToLower(identifier)
	})
}

func (f *fakeUsersRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == strings.ToLower(email) })
}

func (f *fakeUsersRepo) GetUserByUserName(_ context.Context, name string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.UserName == name })
}

func (f *fakeUsersRepo) update(userID string, fn func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsersRepo) UpdatePassword(_ context.Context, userID, hash string) error {
	return f.update(userID, func(u *models.User) { u.PasswordHash = hash })
}

func (f *fakeUsersRepo) MarkEmailVerified(_ context.Context, userID string) error {
	return f.update(userID, func(u *models.User) { u.EmailVerified = true })
}

// --- revocation ledger ---

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]time.Time{}}
}

func (f *fakeLedger) Revoke(_ context.Context, hash string, exp time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.entries[hash]; ok {
		return false, nil
	}
	f.entries[hash] = exp
	return true, nil
}

func (f *fakeLedger) IsRevoked(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.entries[hash]
	return ok, nil
}

func (f *fakeLedger) Purge(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for h, exp := range f.entries {
		if exp.Before(before) {
			delete(f.entries, h)
			n++
		}
	}
	return n, nil
}

// --- single-use tokens ---

type fakeTokenRepo struct {
	mu   sync.Mutex
	rows []*models.OneTimeToken
	err  error
}

func (f *fakeTokenRepo) Replace(_ context.Context, userID, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, r := range f.rows {
		if r.UserID == userID && !r.Used {
			r.TokenHash, r.ExpiresAt, r.CreatedAt = hash, exp, time.Now()
			return nil
		}
	}
	f.rows = append(f.rows, &models.OneTimeToken{UserID: userID, TokenHash: hash, ExpiresAt: exp, CreatedAt: time.Now()})
	return nil
}

func (f *fakeTokenRepo) FindUnused(_ context.Context, hash string) (*models.OneTimeToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.TokenHash == hash && !r.Used {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTokenRepo) MarkUsed(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.rows {
		if r.TokenHash == hash && !r.Used {
			r.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokenRepo) Purge(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, r := range f.rows {
		if r.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeTokenRepo) unused(userID string) []*models.OneTimeToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OneTimeToken
	for _, r := range f.rows {
		if r.UserID == userID && !r.Used {
			out = append(out, r)
		}
	}
	return out
}

// --- repo manager ---

type fakeRepoManager struct {
	users  *fakeUsersRepo
	ledger *fakeLedger
	tokens map[models.Purpose]*fakeTokenRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:  newFakeUsersRepo(),
		ledger: newFakeLedger(),
		tokens: map[models.Purpose]*fakeTokenRepo{
			models.PurposePasswordReset:     {},
			models.PurposeEmailVerification: {},
		},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.users }
func (m *fakeRepoManager) Revocations(dbx.DBTX) revocations.Repository  { return m.ledger }
func (m *fakeRepoManager) OneTimeTokens(_ dbx.DBTX, p models.Purpose) (onetimetokens.Repository, error) {
	r, ok := m.tokens[p]
	if !ok {
		return nil, onetimetokens.ErrUnknownPurpose
	}
	return r, nil
}

// --- notifier ---

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *fakeNotifier) last(t *testing.T) notify.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no notification sent")
	}
	return n.sent[len(n.sent)-1]
}

var errDBDown = errors.New("db down")
