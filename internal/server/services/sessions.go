package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/mail"
)

type Auditor interface {
	Record(ctx context.Context, username, action, status string)
}

// LoginResult is handed out once both factors have been checked.
type LoginResult struct {
	Token   *auth.Token
	IsAdmin bool
}

// SessionService drives the two-step login: password, then emailed OTP.
type SessionService struct {
	credentials *CredentialService
	challenges  *ChallengeService
	tokens      *TokenService
	mailer      mail.Sender
	auditor     Auditor
	logger      logging.Logger
}

func NewSessionService(c *CredentialService, ch *ChallengeService, t *TokenService, m mail.Sender, a Auditor, l logging.Logger) *SessionService {
	return &SessionService{
		credentials: c,
		challenges:  ch,
		tokens:      t,
		mailer:      m,
		auditor:     a,
		logger:      l.With("module", "sessions"),
	}
}

// BeginLogin checks the password and sends an OTP to the user's email.
func (s *SessionService) BeginLogin(ctx context.Context, username, password string) error {
	ok, err := s.credentials.VerifyPassword(ctx, username, password)
	if err != nil {
		s.auditor.Record(ctx, username, "login_password", audit.StatusFailed)
		return err
	}
	if !ok {
		s.auditor.Record(ctx, username, "login_password", audit.StatusFailed)
		return common.ErrInvalidCredentials
	}
	s.auditor.Record(ctx, username, "login_password", audit.StatusSuccess)

	code, err := s.challenges.Issue(ctx, username)
	if err != nil {
		status := audit.StatusFailed
		if errors.Is(err, common.ErrRateLimited) {
			status = audit.StatusRateLimited
		}
		s.auditor.Record(ctx, username, "send_otp", status)
		return err
	}

	email, found, err := s.credentials.LookupEmail(ctx, username)
	if err == nil && !found {
		err = common.ErrorNotFound
	}
	if err == nil {
		err = s.mailer.SendOTP(ctx, email, code)
	}
	if err != nil {
		s.auditor.Record(ctx, username, "send_otp", audit.StatusFailed)
		return fmt.Errorf("error delivering otp: %w", err)
	}

	s.auditor.Record(ctx, username, "send_otp", audit.StatusSuccess)
	return nil
}

// CompleteLogin redeems the OTP and issues an access token.
func (s *SessionService) CompleteLogin(ctx context.Context, username, code string) (*LoginResult, error) {
	if err := s.challenges.Verify(ctx, username, code); err != nil {
		s.auditor.Record(ctx, username, "verify_otp", audit.StatusFailed)
		s.logger.Info(ctx, "otp rejected", "user", username, "reason", err.Error())
		return nil, err
	}

	tok, err := s.tokens.Issue(ctx, username)
	if err != nil {
		s.auditor.Record(ctx, username, "verify_otp", audit.StatusFailed)
		return nil, fmt.Errorf("error issuing token: %w", err)
	}

	admin, err := s.credentials.IsAdmin(ctx, username)
	if err != nil {
		s.logger.Warn(ctx, "admin flag lookup failed", "user", username, "error", err)
	}

	s.auditor.Record(ctx, username, "verify_otp", audit.StatusSuccess)
	return &LoginResult{Token: tok, IsAdmin: admin}, nil
}

func (s *SessionService) Logout(ctx context.Context, p *auth.Principal) error {
	if err := s.tokens.Revoke(ctx, p); err != nil {
		s.auditor.Record(ctx, p.User, "logout", audit.StatusFailed)
		return err
	}
	s.auditor.Record(ctx, p.User, "logout", audit.StatusSuccess)
	return nil
}
