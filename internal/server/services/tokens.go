package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
	"github.com/google/uuid"
)

// Revoker is the revocation registry as seen by TokenService.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) bool
}

// TokenService mints and validates access tokens.
type TokenService struct {
	secret        []byte
	registry      Revoker
	clock         timex.Clock
	sessionMaxAge time.Duration
}

// NewTokenService builds a TokenService. sessionMaxAge caps the age of
// tokens presented through the session carrier; zero disables the cap.
func NewTokenService(secretKey string, registry Revoker, clock timex.Clock, sessionMaxAge time.Duration) *TokenService {
	return &TokenService{
		secret:        []byte(secretKey),
		registry:      registry,
		clock:         clock,
		sessionMaxAge: sessionMaxAge,
	}
}

func (s *TokenService) Issue(_ context.Context, username string) (*auth.Token, error) {
	return auth.GenerateToken(username, uuid.NewString(), s.secret, s.clock(), common.AccessTokenLifetime)
}

// Validate returns the principal for a token that is correctly signed,
// unexpired and not revoked. Failures are *auth.TokenError.
func (s *TokenService) Validate(ctx context.Context, token string, src auth.Source) (*auth.Principal, error) {
	now := s.clock()

	claims, err := auth.ParseToken(token, s.secret, now)
	if err != nil {
		return nil, err
	}

	p := &auth.Principal{
		User:      claims.User,
		JTI:       claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Source:    src,
	}

	if src == auth.SourceSession && s.sessionMaxAge > 0 && !now.Before(p.IssuedAt.Add(s.sessionMaxAge)) {
		return nil, &auth.TokenError{Kind: auth.KindExpired}
	}
	if s.registry.IsRevoked(ctx, p.JTI) {
		return nil, &auth.TokenError{Kind: auth.KindRevoked}
	}
	return p, nil
}

// Revoke invalidates the principal's token for the rest of its lifetime.
func (s *TokenService) Revoke(ctx context.Context, p *auth.Principal) error {
	ttl := p.Remaining(s.clock())
	if ttl == 0 {
		return nil
	}
	return s.registry.Revoke(ctx, p.JTI, ttl)
}
