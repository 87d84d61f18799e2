// Package services contains server-side business logic: credentials, OTP
// challenges, access tokens, the login flow and file custody.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/repomanager"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// CredentialService owns user identities and password verification.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	params      auth.PasswordParams

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, params auth.PasswordParams) *CredentialService {
	return &CredentialService{db: db, repomanager: m, params: params}
}

// Register creates a regular user. It returns false with
// common.ErrDuplicateIdentity when the username or email is taken.
func (s *CredentialService) Register(ctx context.Context, username, password, email string) (bool, error) {
	return s.create(ctx, username, password, email, false)
}

// CreateAdmin creates a user that is an administrator from the start.
func (s *CredentialService) CreateAdmin(ctx context.Context, username, password, email string) (bool, error) {
	return s.create(ctx, username, password, email, true)
}

func (s *CredentialService) create(ctx context.Context, username, password, email string, admin bool) (bool, error) {
	if !usernamePattern.MatchString(username) {
		return false, fmt.Errorf("%w: username must match %s", common.ErrValidation, usernamePattern)
	}
	if password == "" || strings.TrimSpace(email) == "" {
		return false, fmt.Errorf("%w: password and email are required", common.ErrValidation)
	}

	hash, err := auth.HashPassword(password, s.params)
	if err != nil {
		return false, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{UserName: username, PasswordHash: hash, Email: strings.TrimSpace(email), IsAdmin: admin}
	if _, err := s.repomanager.Users(s.db).Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) {
			return false, err
		}
		return false, fmt.Errorf("error creating user: %w", err)
	}
	return true, nil
}

// VerifyPassword reports whether password matches. An unknown user costs
// the same hashing work as a wrong password.
func (s *CredentialService) VerifyPassword(ctx context.Context, username, password string) (bool, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = auth.CheckPassword(password, s.dummy())
			return false, nil
		}
		return false, fmt.Errorf("error loading user: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("error checking password: %w", err)
	}
	return ok, nil
}

func (s *CredentialService) PromoteAdmin(ctx context.Context, username string) error {
	return s.repomanager.Users(s.db).SetAdmin(ctx, username, true)
}

// DeleteUser removes the user and, through the foreign key, its file
// metadata. It does not check the password; callers must.
func (s *CredentialService) DeleteUser(ctx context.Context, username string) (bool, error) {
	return s.repomanager.Users(s.db).Delete(ctx, username)
}

func (s *CredentialService) IsAdmin(ctx context.Context, username string) (bool, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *CredentialService) LookupEmail(ctx context.Context, username string) (string, bool, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return user.Email, true, nil
}

func (s *CredentialService) dummy() string {
	s.dummyOnce.Do(func() {
		pw, _ := common.MakeRandHexString(16)
		s.dummyHash, _ = auth.HashPassword(pw, s.params)
	})
	return s.dummyHash
}
