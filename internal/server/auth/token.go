package auth

import (
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
)

type TokenErrorKind int

const (
	KindMalformed TokenErrorKind = iota + 1
	KindExpired
	KindRevoked
)

func (k TokenErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindExpired:
		return "expired"
	case KindRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

func (k TokenErrorKind) sentinel() error {
	switch k {
	case KindExpired:
		return common.ErrTokenExpired
	case KindRevoked:
		return common.ErrTokenRevoked
	default:
		return common.ErrTokenMalformed
	}
}

// TokenError keeps the precise rejection reason for audit. Callers outside
// the server only ever see common.ErrorUnauthorized.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return "token " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "token " + e.Kind.String()
}

func (e *TokenError) Is(target error) bool {
	return target == common.ErrorUnauthorized || target == e.Kind.sentinel()
}

func (e *TokenError) Unwrap() error { return e.Err }

// Source tells where the request carried its token.
type Source int

const (
	SourceHeader Source = iota
	SourceSession
)

func (s Source) String() string {
	if s == SourceSession {
		return "session"
	}
	return "header"
}

// Principal is the authenticated caller of a request.
type Principal struct {
	User      string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Source    Source
}

// Remaining is how long the token stays valid after now.
func (p *Principal) Remaining(now time.Time) time.Duration {
	if d := p.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
