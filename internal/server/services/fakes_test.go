package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/dbx"
	"github.com/skorolev/duetchat/internal/logging"
	"github.com/skorolev/duetchat/internal/server/models"
	"github.com/skorolev/duetchat/internal/server/repositories/messages"
	"github.com/skorolev/duetchat/internal/server/repositories/refreshtokens"
	"github.com/skorolev/duetchat/internal/server/repositories/users"
)

// --- shared helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- fake repositories ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	byEmail map[string]*models.User
	byID    map[string]*models.User

	others []*models.User

	updateOut *models.User
	updateErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) ListOthers(ctx context.Context, excludeID string) ([]*models.User, error) {
	return f.others, nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id, fullName, bio, avatarURL string) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateOut, nil
}

type fakeMessagesRepo struct {
	createCalls int
	createErr   error

	thread []*models.Message

	markThreadCalls []string // "sender->receiver"
	markSeenIDs     []string

	unseen map[string]int
}

func (f *fakeMessagesRepo) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	m.ID = "m1"
	m.Seen = false
	m.CreatedAt = time.Now()
	return m, nil
}

func (f *fakeMessagesRepo) Thread(ctx context.Context, a, b string) ([]*models.Message, error) {
	return f.thread, nil
}

func (f *fakeMessagesRepo) MarkThreadSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	f.markThreadCalls = append(f.markThreadCalls, senderID+"->"+receiverID)
	return 1, nil
}

func (f *fakeMessagesRepo) MarkSeen(ctx context.Context, id string) error {
	f.markSeenIDs = append(f.markSeenIDs, id)
	return nil
}

func (f *fakeMessagesRepo) CountUnseenByPeer(ctx context.Context, receiverID string) (map[string]int, error) {
	return f.unseen, nil
}

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error

	created []string
	deleted []string

	createErr error
	delErr    error
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, token)
	return nil
}

// fakeRepoManager hands out the same fakes regardless of the DBTX.
type fakeRepoManager struct {
	users    *fakeUsersRepo
	messages *fakeMessagesRepo
	refresh  *fakeRefreshRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    &fakeUsersRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}},
		messages: &fakeMessagesRepo{unseen: map[string]int{}},
		refresh:  &fakeRefreshRepo{},
	}
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (f *fakeRepoManager) Users(db dbx.DBTX) users.Repository { return f.users }

func (f *fakeRepoManager) Messages(db dbx.DBTX) messages.Repository { return f.messages }

func (f *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return f.refresh }

// --- fake collaborators ---

type fakePusher struct {
	delivered bool
	calls     []struct {
		UserID  string
		Event   string
		Payload any
	}
}

func (f *fakePusher) Send(userID string, event string, payload any) bool {
	f.calls = append(f.calls, struct {
		UserID  string
		Event   string
		Payload any
	}{userID, event, payload})
	return f.delivered
}

type fakeMediaStore struct {
	url string
	err error

	uploads []string
}

func (f *fakeMediaStore) Upload(ctx context.Context, dataURL string) (string, error) {
	f.uploads = append(f.uploads, dataURL)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}
