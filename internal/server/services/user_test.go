package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/server/auth"
	"github.com/skorolev/duetchat/internal/server/config"
	"github.com/skorolev/duetchat/internal/server/models"
)

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  time.Minute,
		RefreshTokenValidityDuration: time.Hour,
	}
}

func TestUserService_Register_Validation(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	s := NewUserService(db, rm, &fakeMediaStore{}, testConfig())

	_, _, err := s.Register(context.Background(), "", "", "short", "")

	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 3 {
		t.Errorf("expected 3 field errors, got %d", len(ve.Fields))
	}
}

func TestUserService_Register_DuplicateEmail(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.createErr = common.ErrorAlreadyExists
	s := NewUserService(db, rm, &fakeMediaStore{}, testConfig())

	_, _, err := s.Register(context.Background(), "Ann Lee", "ann@example.com", "secret1", "")
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestUserService_Register_Success(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.createOut = &models.User{ID: "u1", FullName: "Ann Lee", Email: "ann@example.com"}
	s := NewUserService(db, rm, &fakeMediaStore{}, testConfig())

	user, pair, err := s.Register(context.Background(), "Ann Lee", "ann@example.com", "secret1", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("unexpected user id %q", user.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("expected both tokens minted")
	}
	if len(rm.refresh.created) != 1 || rm.refresh.created[0] != pair.RefreshToken {
		t.Errorf("refresh token not stored: %v", rm.refresh.created)
	}
}

func TestUserService_Login(t *testing.T) {
	t.Parallel()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	user := &models.User{ID: "u1", Email: "ann@example.com", PasswordHash: string(hash)}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"ok", "ann@example.com", "secret1", nil},
		{"wrong password", "ann@example.com", "nope", common.ErrorUnauthorized},
		{"unknown email", "bob@example.com", "secret1", common.ErrorUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, _ := newSQLMockDB(t)
			defer db.Close()
			rm := newFakeRepoManager()
			rm.users.byEmail[user.Email] = user
			s := NewUserService(db, rm, &fakeMediaStore{}, testConfig())

			got, pair, err := s.Login(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != "u1" || pair.AccessToken == "" {
				t.Error("expected user and token pair")
			}
		})
	}
}

func TestUserService_RefreshToken_Rotation(t *testing.T) {
	t.Parallel()
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	rm.users.byID["u1"] = &models.User{ID: "u1"}
	rm.refresh.findOut = &models.RefreshToken{UserID: "u1", Token: "old", Expires: time.Now().Add(time.Hour)}
	s := NewUserService(db, rm, &fakeMediaStore{}, testConfig())

	user, pair, err := s.RefreshToken(context.Background(), "old")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("unexpected user %q", user.ID)
	}
	if pair.RefreshToken == "old" {
		t.Error("refresh token was not rotated")
	}
	if len(rm.refresh.deleted) != 1 || rm.refresh.deleted[0] != "old" {
		t.Errorf("old token not deleted: %v", rm.refresh.deleted)
	}
	if len(rm.refresh.created) != 1 || rm.refresh.created[0] != pair.RefreshToken {
		t.Errorf("new token not stored: %v", rm.refresh.created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUserService_RefreshToken_Unknown(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.refresh.findErr = common.ErrorNotFound
	s := NewUserService(db, rm, &fakeMediaStore{}, testConfig())

	_, _, err := s.RefreshToken(context.Background(), "tampered")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUserService_RefreshToken_Expired(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.refresh.findOut = &models.RefreshToken{UserID: "u1", Token: "old", Expires: time.Now().Add(-time.Minute)}
	s := NewUserService(db, rm, &fakeMediaStore{}, testConfig())

	_, _, err := s.RefreshToken(context.Background(), "old")
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
}

func TestUserService_Authorize(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	secret := []byte(cfg.SecretKey)

	valid, err := auth.GenerateToken("u1", secret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := auth.GenerateToken("u1", secret, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	vanished, err := auth.GenerateToken("ghost", secret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"ok", valid, nil},
		{"expired", expired, common.ErrTokenExpired},
		{"garbage", "not.a.jwt", common.ErrInvalidToken},
		{"vanished user", vanished, common.ErrorUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, _ := newSQLMockDB(t)
			defer db.Close()
			rm := newFakeRepoManager()
			rm.users.byID["u1"] = &models.User{ID: "u1"}
			s := NewUserService(db, rm, &fakeMediaStore{}, cfg)

			user, err := s.Authorize(context.Background(), tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.ID != "u1" {
				t.Errorf("unexpected user %q", user.ID)
			}
		})
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.updateOut = &models.User{ID: "u1", FullName: "Ann Lee", AvatarURL: "https://cdn/x.png"}
	store := &fakeMediaStore{url: "https://cdn/x.png"}
	s := NewUserService(db, rm, store, testConfig())

	user, err := s.UpdateProfile(context.Background(), "u1", "Ann Lee", "hi", "data:image/png;base64,aGk=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.AvatarURL != "https://cdn/x.png" {
		t.Errorf("unexpected avatar url %q", user.AvatarURL)
	}
	if len(store.uploads) != 1 {
		t.Errorf("expected one upload, got %d", len(store.uploads))
	}
}

func TestUserService_UpdateProfile_EmptyName(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := NewUserService(db, newFakeRepoManager(), &fakeMediaStore{}, testConfig())

	_, err := s.UpdateProfile(context.Background(), "u1", "  ", "", "")
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
