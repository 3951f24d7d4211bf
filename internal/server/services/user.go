package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sealbox/sealbox/internal/common"
	"github.com/sealbox/sealbox/internal/cryptox"
	"github.com/sealbox/sealbox/internal/dbx"
	"github.com/sealbox/sealbox/internal/server/auth"
	"github.com/sealbox/sealbox/internal/server/models"
	"github.com/sealbox/sealbox/internal/server/repositories/repomanager"
)

// TokenPair is what login, registration and refresh all return.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService manages accounts and token issuance. It holds the *sql.DB
// rather than bound repositories so refresh rotation can run both
// repository calls inside one transaction.
type UserService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager

	secretKey       []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, secretKey []byte, accessValidity, refreshValidity time.Duration) *UserService {
	return &UserService{
		db:              db,
		repos:           repos,
		secretKey:       secretKey,
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
	}
}

const (
	minUserNameLen = 3
	maxUserNameLen = 64
	minPasswordLen = 8
)

func validateCredentials(userName, password string) error {
	n := utf8.RuneCountInString(userName)
	if n < minUserNameLen || n > maxUserNameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", common.ErrorValidation, minUserNameLen, maxUserNameLen)
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLen)
	}
	return nil
}

// Register creates an account with an argon2id password verifier and
// returns a fresh token pair.
func (s *UserService) Register(ctx context.Context, userName, password string) (*TokenPair, error) {
	if err := validateCredentials(userName, password); err != nil {
		return nil, err
	}

	user := &models.User{
		UserName: userName,
		Verifier: cryptox.MakeGate(password),
		Tier:     models.TierFree,
	}

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, tx, created.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Login verifies the password against the stored verifier. Unknown user
// and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	user, err := s.repos.Users(s.db).GetByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !cryptox.VerifyGate(user.Verifier, password) {
		return nil, common.ErrorUnauthorized
	}
	return s.issueTokens(ctx, s.db, user.ID)
}

// Refresh rotates a refresh token: the presented token is deleted and a
// new pair issued in the same transaction, so a token can be redeemed
// at most once.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.RefreshTokens(tx)
		stored, err := repo.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if !time.Now().Before(stored.Expires) {
			return common.ErrRefreshTokenExpired
		}
		if err := repo.Delete(ctx, refreshToken); err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, tx, stored.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate resolves a bearer token to a user id.
func (s *UserService) Authenticate(tokenString string) (string, error) {
	return auth.GetUserIDFromToken(tokenString, s.secretKey)
}

// GetUser returns account details for the status endpoint.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, userID)
}

func (s *UserService) issueTokens(ctx context.Context, db dbx.DBTX, userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.secretKey, s.accessValidity)
	if err != nil {
		return nil, err
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, err
	}
	if err := s.repos.RefreshTokens(db).Create(ctx, userID, refresh, s.refreshValidity); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
