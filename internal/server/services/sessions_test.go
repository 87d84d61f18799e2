package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/revocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	svc    *SessionService
	creds  *CredentialService
	tokens *TokenService
	mock   sqlmock.Sqlmock
	clock  *fakeClock
	mailer *fakeMailer
	audit  *fakeAuditor
	users  *memUsers
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	u := newMemUsers()
	rm := &fakeRepoManager{u: u, f: &memFiles{}}
	c := &fakeClock{now: t0}

	creds := NewCredentialService(db, rm, fastParams)
	ch := NewChallengeService(db, rm, c.Now)
	tokens := NewTokenService("secret", revocation.NewLocalRegistry(logging.NewNop(), c.Now), c.Now, 15*time.Minute)
	m := &fakeMailer{}
	a := &fakeAuditor{}

	_, err := creds.Register(context.Background(), "alice", "pw", "alice@example.com")
	require.NoError(t, err)

	return &sessionFixture{
		svc:    NewSessionService(creds, ch, tokens, m, a, logging.NewNop()),
		creds:  creds,
		tokens: tokens,
		mock:   mock,
		clock:  c,
		mailer: m,
		audit:  a,
		users:  u,
	}
}

func TestLogin_TwoFactors(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.BeginLogin(ctx, "alice", "pw"))
	assert.Equal(t, "alice@example.com", f.mailer.email)
	assert.Len(t, f.mailer.code, 6)
	assert.Equal(t, event{"alice", "send_otp", "success"}, f.audit.last())

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.CompleteLogin(ctx, "alice", f.mailer.code)
	require.NoError(t, err)
	assert.False(t, res.IsAdmin)
	assert.Equal(t, event{"alice", "verify_otp", "success"}, f.audit.last())

	p, err := f.tokens.Validate(ctx, res.Token.Value, auth.SourceHeader)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.User)
}

func TestBeginLogin_WrongPassword(t *testing.T) {
	f := newSessionFixture(t)

	err := f.svc.BeginLogin(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Empty(t, f.mailer.code)
	assert.Equal(t, event{"alice", "login_password", "failed"}, f.audit.last())
}

func TestBeginLogin_RateLimited(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.BeginLogin(ctx, "alice", "pw"))
	f.clock.Advance(10 * time.Second)

	err := f.svc.BeginLogin(ctx, "alice", "pw")
	assert.ErrorIs(t, err, common.ErrRateLimited)
	assert.Equal(t, event{"alice", "send_otp", "rate_limited"}, f.audit.last())
}

func TestBeginLogin_MailFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.mailer.err = errBoom

	err := f.svc.BeginLogin(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, event{"alice", "send_otp", "failed"}, f.audit.last())
}

func TestCompleteLogin_WrongCode(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.BeginLogin(ctx, "alice", "pw"))

	wrong := "000000"
	if f.mailer.code == wrong {
		wrong = "999999"
	}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.CompleteLogin(ctx, "alice", wrong)
	assert.ErrorIs(t, err, common.ErrChallengeMismatch)
	assert.Equal(t, event{"alice", "verify_otp", "failed"}, f.audit.last())
}

func TestCompleteLogin_ReportsAdmin(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.creds.PromoteAdmin(ctx, "alice"))
	require.NoError(t, f.svc.BeginLogin(ctx, "alice", "pw"))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.CompleteLogin(ctx, "alice", f.mailer.code)
	require.NoError(t, err)
	assert.True(t, res.IsAdmin)
}

func TestLogout(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	tok, err := f.tokens.Issue(ctx, "alice")
	require.NoError(t, err)
	p, err := f.tokens.Validate(ctx, tok.Value, auth.SourceHeader)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, p))
	assert.Equal(t, event{"alice", "logout", "success"}, f.audit.last())

	_, err = f.tokens.Validate(ctx, tok.Value, auth.SourceHeader)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)
}
