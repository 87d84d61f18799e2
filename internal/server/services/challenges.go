package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
)

const (
	// OTPResendInterval is the minimum gap between two issued codes.
	OTPResendInterval = 60 * time.Second
	// OTPValidity is how long an issued code can be redeemed.
	OTPValidity = 300 * time.Second

	otpMin = 100000
	otpMax = 999999
)

// ChallengeService issues and redeems six-digit one-time passcodes.
type ChallengeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	newCode     func() (string, error)
}

func NewChallengeService(db *sql.DB, m repomanager.RepositoryManager, clock timex.Clock) *ChallengeService {
	return &ChallengeService{db: db, repomanager: m, clock: clock, newCode: randomCode}
}

// Issue stores and returns a fresh code. It fails with common.ErrRateLimited
// when the previous code is younger than OTPResendInterval.
func (s *ChallengeService) Issue(ctx context.Context, username string) (string, error) {
	now := s.clock()

	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("error generating otp: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	ok, err := repo.SetOTP(ctx, username, code, now, now.Add(-OTPResendInterval))
	if err != nil {
		return "", fmt.Errorf("error storing otp: %w", err)
	}
	if ok {
		return code, nil
	}

	// nothing updated: either no such user or rate limited
	if _, err := repo.GetUserByLogin(ctx, username); err != nil {
		return "", err
	}
	return "", common.ErrRateLimited
}

// Verify redeems code. The row stays locked from read to clear, so of two
// concurrent attempts at most one succeeds.
func (s *ChallengeService) Verify(ctx context.Context, username, code string) error {
	now := s.clock()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		stored, issuedAt, err := repo.LockOTP(ctx, username)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrChallengeMissing
			}
			return err
		}
		if stored == nil || issuedAt == nil {
			return common.ErrChallengeMissing
		}
		if now.Sub(*issuedAt) > OTPValidity {
			return common.ErrChallengeExpired
		}
		if subtle.ConstantTimeCompare([]byte(*stored), []byte(code)) != 1 {
			return common.ErrChallengeMismatch
		}
		return repo.ClearOTP(ctx, username)
	})
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
