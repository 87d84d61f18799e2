package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/services"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeAccounts struct {
	regErr   error
	admin    bool
	adminErr error
}

func (f *fakeAccounts) Register(context.Context, string, string, string) (bool, error) {
	return f.regErr == nil, f.regErr
}

func (f *fakeAccounts) IsAdmin(context.Context, string) (bool, error) { return f.admin, f.adminErr }

type fakeSessions struct {
	beginErr    error
	complete    *services.LoginResult
	completeErr error
	logoutErr   error
	loggedOut   []string
}

func (f *fakeSessions) BeginLogin(context.Context, string, string) error { return f.beginErr }

func (f *fakeSessions) CompleteLogin(context.Context, string, string) (*services.LoginResult, error) {
	return f.complete, f.completeErr
}

func (f *fakeSessions) Logout(_ context.Context, p *auth.Principal) error {
	f.loggedOut = append(f.loggedOut, p.JTI)
	return f.logoutErr
}

type fakeFiles struct {
	uploaded  map[string][]byte
	uploadRes *services.UploadResult
	err       error
	deleted   string
}

func (f *fakeFiles) Upload(_ context.Context, p *auth.Principal, name string, data []byte) (*services.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[p.User+"/"+name] = data
	if f.uploadRes != nil {
		return f.uploadRes, nil
	}
	return &services.UploadResult{Name: name}, nil
}

func (f *fakeFiles) Download(_ context.Context, owner, name string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.uploaded[owner+"/"+name], nil
}

func (f *fakeFiles) List(context.Context, string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"a.txt", "b.pdf"}, nil
}

func (f *fakeFiles) DeleteAccount(_ context.Context, username, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = username
	return nil
}

type fakeAdmin struct {
	events []*models.AuditEvent
	stats  *models.Stats
	limit  int
	err    error
}

func (f *fakeAdmin) AuditLogs(_ context.Context, limit int) ([]*models.AuditEvent, error) {
	f.limit = limit
	return f.events, f.err
}

func (f *fakeAdmin) Stats(context.Context) (*models.Stats, error) { return f.stats, f.err }

// fakeTokens accepts exactly the tokens in valid.
type fakeTokens struct {
	valid map[string]string
	err   error
}

func (f *fakeTokens) Validate(_ context.Context, token string, src auth.Source) (*auth.Principal, error) {
	user, ok := f.valid[token]
	if !ok {
		if f.err != nil {
			return nil, f.err
		}
		return nil, &auth.TokenError{Kind: auth.KindMalformed}
	}
	return &auth.Principal{User: user, JTI: "jti-" + token, IssuedAt: t0, ExpiresAt: t0.Add(30 * time.Minute), Source: src}, nil
}

type event struct{ user, action, status, source string }

type fakeAuditor struct {
	mu     sync.Mutex
	events []event
}

func (a *fakeAuditor) Record(ctx context.Context, user, action, status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event{user, action, status, audit.SourceFromContext(ctx)})
}

func (a *fakeAuditor) last() event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return event{}
	}
	return a.events[len(a.events)-1]
}

type fixture struct {
	srv      *GRPCServer
	accounts *fakeAccounts
	sessions *fakeSessions
	files    *fakeFiles
	admin    *fakeAdmin
	tokens   *fakeTokens
	audit    *fakeAuditor
}

func newFixture() *fixture {
	f := &fixture{
		accounts: &fakeAccounts{},
		sessions: &fakeSessions{},
		files:    &fakeFiles{},
		admin:    &fakeAdmin{},
		tokens:   &fakeTokens{valid: map[string]string{"good": "alice"}},
		audit:    &fakeAuditor{},
	}
	srv, err := NewGRPCServer("127.0.0.1:0", logging.NewNop(), f.accounts, f.sessions, f.files, f.admin, f.tokens, f.audit)
	if err != nil {
		panic(err)
	}
	f.srv = srv
	return f
}
