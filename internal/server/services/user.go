// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, and issuing/refreshing the
// access+refresh token pair.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/registryauth/internal/common"
	"github.com/dmitrijs2005/registryauth/internal/server/auth"
	"github.com/dmitrijs2005/registryauth/internal/server/config"
	"github.com/dmitrijs2005/registryauth/internal/server/models"
	"github.com/dmitrijs2005/registryauth/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token,
// both bound to the same subject and expiring independently.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides authentication-related operations:
// - Register: create accounts
// - Login: verify credentials and mint a token pair
// - RefreshTokens: verify a refresh token and mint a fresh pair
// - GetActiveUser: post-verification store lookup for protected calls
//
// The service is stateless; every call is a function of its inputs plus
// store I/O, so it is safe to share one instance between goroutines.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
// The database handle is injected; its lifecycle belongs to the entry point.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates a new account with a bcrypt-hashed password. Registering a
// taken username yields common.ErrAlreadyExists, whether the conflict shows
// up at the pre-check or, when two registrations race, at insert time via the
// store's unique constraint.
func (s *UserService) Register(ctx context.Context, username string, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	_, err := repo.GetByUsername(ctx, username)
	if err == nil {
		return nil, common.ErrAlreadyExists
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("error checking username: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{Username: username, PasswordHash: hash, IsActive: true, Role: "user"}
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies the password against the stored hash and, on success,
// returns a new TokenPair. A missing user and a wrong password produce the
// same error so the response does not leak which usernames exist.
func (s *UserService) Login(ctx context.Context, username string, password string) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrInternal
	}

	if !user.IsActive {
		return nil, common.ErrInvalidCredentials
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	return s.generateTokenPair(user.Username)
}

// RefreshTokens validates a refresh-kind token, re-confirms the subject still
// exists and is active, and returns a fresh TokenPair. The full pair rotates
// on every call; the superseded refresh token simply ages out, since no
// revocation store exists.
func (s *UserService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	subject, err := auth.SubjectFromToken(refreshToken, auth.TokenKindRefresh, s.jwtSecret)
	if err != nil {
		return nil, common.ErrInvalidRefreshToken
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, common.ErrInternal
	}

	if !user.IsActive {
		return nil, common.ErrInvalidRefreshToken
	}

	return s.generateTokenPair(user.Username)
}

// GetActiveUser loads the record for an already-verified subject. Used by the
// request boundary after token verification; a deleted or deactivated account
// yields common.ErrNotFound.
func (s *UserService) GetActiveUser(ctx context.Context, username string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.ErrInternal
	}
	if !user.IsActive {
		return nil, common.ErrNotFound
	}
	return user, nil
}

func (s *UserService) generateTokenPair(username string) (*TokenPair, error) {
	access, err := auth.GenerateToken(username, auth.TokenKindAccess, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}
	refresh, err := auth.GenerateToken(username, auth.TokenKindRefresh, s.jwtSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
