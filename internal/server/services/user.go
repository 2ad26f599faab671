// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, profile updates, and
// issuing/refreshing JWTs plus server-stored refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/dbx"
	"github.com/skorolev/duetchat/internal/server/auth"
	"github.com/skorolev/duetchat/internal/server/config"
	"github.com/skorolev/duetchat/internal/server/media"
	"github.com/skorolev/duetchat/internal/server/models"
	"github.com/skorolev/duetchat/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides identity and authentication operations:
//   - Register / Login: create users, verify credentials, mint tokens
//   - RefreshToken: rotate refresh tokens and mint new access tokens
//   - Authorize: resolve an access token to its identity
//   - UpdateProfile: mutate the owning user's profile
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	mediaStore                   media.Store
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mediaStore media.Store, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		mediaStore:                   mediaStore,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates a new user. A duplicate email yields
// common.ErrorAlreadyExists; missing fields yield a ValidationError.
func (s *UserService) Register(ctx context.Context, fullName, email, password, bio string) (*models.User, *TokenPair, error) {
	var fields []common.FieldError
	if strings.TrimSpace(fullName) == "" {
		fields = append(fields, common.FieldError{Field: "fullName", Message: "full name is required"})
	}
	if strings.TrimSpace(email) == "" {
		fields = append(fields, common.FieldError{Field: "email", Message: "email is required"})
	}
	if len(password) < 6 {
		fields = append(fields, common.FieldError{Field: "password", Message: "password must be at least 6 characters"})
	}
	if len(fields) > 0 {
		return nil, nil, &common.ValidationError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	user := &models.User{FullName: fullName, Email: email, PasswordHash: string(hash), Bio: bio}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, nil, common.ErrorAlreadyExists
		}
		return nil, nil, fmt.Errorf("error creating user: %v", err)
	}

	pair, err := s.generateTokenPair(ctx, u.ID, s.db)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Login verifies the email/password pair and, on success, returns the user
// and a new TokenPair. Unknown email and wrong password are indistinguishable
// to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, common.ErrorUnauthorized
	}

	pair, err := s.generateTokenPair(ctx, user.ID, s.db)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Unknown tokens yield ErrInvalidToken; expired
// tokens yield ErrRefreshTokenExpired. Either way the old token is spent.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("error searching refresh token: %v", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		return nil, nil, common.ErrorUnauthorized
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		if err := repoTx.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %v", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Authorize resolves an access token to its identity. Expiry and signature
// failures pass through unchanged so the transport layer can surface the
// precise reason; a valid token for a vanished user is ErrorUnauthorized.
func (s *UserService) Authorize(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// UpdateProfile mutates the owning user's display name, bio, and avatar.
// A non-empty avatarDataURL is uploaded through the media store first.
func (s *UserService) UpdateProfile(ctx context.Context, userID, fullName, bio, avatarDataURL string) (*models.User, error) {
	if strings.TrimSpace(fullName) == "" {
		return nil, common.NewValidationError("fullName", "full name is required")
	}

	avatarURL := ""
	if avatarDataURL != "" {
		url, err := s.mediaStore.Upload(ctx, avatarDataURL)
		if err != nil {
			return nil, fmt.Errorf("uploading avatar: %w", err)
		}
		avatarURL = url
	}

	user, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, fullName, bio, avatarURL)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// --- helpers below ---

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
