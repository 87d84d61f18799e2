package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	SetAdmin(ctx context.Context, login string, admin bool) error
	Delete(ctx context.Context, login string) (bool, error)
	Count(ctx context.Context) (int64, error)

	// SetOTP stores a new challenge unless one was sent after notSentSince.
	// It reports whether the row was updated.
	SetOTP(ctx context.Context, login, code string, now, notSentSince time.Time) (bool, error)
	// LockOTP reads the outstanding challenge with a row lock; use inside a
	// transaction.
	LockOTP(ctx context.Context, login string) (code *string, issuedAt *time.Time, err error)
	ClearOTP(ctx context.Context, login string) error
}
