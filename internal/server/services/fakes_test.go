package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/files"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/users"
)

var (
	errBoom    = errors.New("boom")
	fastParams = auth.PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}
	t0         = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memUsers mimics the users table, including the conditional OTP update.
type memUsers struct {
	mu     sync.Mutex
	rows   map[string]*models.User
	nextID int
	getErr error
}

func newMemUsers() *memUsers { return &memUsers{rows: map[string]*models.User{}} }

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserName == u.UserName || r.Email == u.Email {
			return nil, common.ErrDuplicateIdentity
		}
	}
	m.nextID++
	cp := *u
	cp.ID = strconv.Itoa(m.nextID)
	m.rows[u.UserName] = &cp
	u.ID = cp.ID
	return u, nil
}

func (m *memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.rows[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memUsers) SetAdmin(_ context.Context, login string, admin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[login]
	if !ok {
		return common.ErrorNotFound
	}
	r.IsAdmin = admin
	return nil
}

func (m *memUsers) Delete(_ context.Context, login string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[login]; !ok {
		return false, nil
	}
	delete(m.rows, login)
	return true, nil
}

func (m *memUsers) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return int64(len(m.rows)), nil
}

func (m *memUsers) SetOTP(_ context.Context, login, code string, now, notSentSince time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[login]
	if !ok {
		return false, nil
	}
	if r.LastOTPSent != nil && r.LastOTPSent.After(notSentSince) {
		return false, nil
	}
	r.OTP, r.OTPTime, r.LastOTPSent = &code, &now, &now
	return true, nil
}

func (m *memUsers) LockOTP(_ context.Context, login string) (*string, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[login]
	if !ok {
		return nil, nil, common.ErrorNotFound
	}
	return r.OTP, r.OTPTime, nil
}

func (m *memUsers) ClearOTP(_ context.Context, login string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[login]; ok {
		r.OTP, r.OTPTime = nil, nil
	}
	return nil
}

func newUser(name string) *models.User {
	return &models.User{UserName: name, PasswordHash: "x", Email: name + "@example.com"}
}

type memFiles struct {
	mu        sync.Mutex
	rows      []*models.FileMetadata
	createErr error
}

func (m *memFiles) Create(_ context.Context, f *models.FileMetadata) (*models.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	f.ID = int64(len(m.rows) + 1)
	cp := *f
	m.rows = append(m.rows, &cp)
	return f, nil
}

func (m *memFiles) DeleteByName(_ context.Context, owner, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if !(r.Owner == owner && r.Filename == name && r.Active) {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

func (m *memFiles) ListRisky(context.Context, int) ([]*models.FileMetadata, error) { return nil, nil }
func (m *memFiles) Quarantine(context.Context, int64, string) error                { return nil }

func (m *memFiles) Stats(_ context.Context, warnFrom, criticalFrom int) (*models.FileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st models.FileStats
	var sum int
	for _, r := range m.rows {
		st.Total++
		sum += r.RiskScore
		if !r.Active {
			st.Quarantined++
		}
		switch {
		case r.RiskScore < warnFrom:
			st.Safe++
		case r.RiskScore < criticalFrom:
			st.Warning++
		default:
			st.Critical++
		}
	}
	if st.Total > 0 {
		st.AvgRisk = float64(sum) / float64(st.Total)
	}
	return &st, nil
}

// memAudit returns its events in reverse order of insertion.
type memAudit struct {
	mu      sync.Mutex
	events  []*models.AuditEvent
	limits  []int
	listErr error
}

func (m *memAudit) Append(_ context.Context, e *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memAudit) List(_ context.Context, limit int) ([]*models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.AuditEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

type fakeRepoManager struct {
	u *memUsers
	f *memFiles
	a *memAudit
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.u }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return m.f }

func (m *fakeRepoManager) Audit(dbx.DBTX) audit.Repository {
	if m.a == nil {
		return nil
	}
	return m.a
}

func (m *fakeRepoManager) Revocations(dbx.DBTX) revocations.Repository { return nil }

type event struct{ user, action, status string }

type fakeAuditor struct {
	mu     sync.Mutex
	events []event
}

func (a *fakeAuditor) Record(_ context.Context, user, action, status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event{user, action, status})
}

func (a *fakeAuditor) last() event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return event{}
	}
	return a.events[len(a.events)-1]
}

type fakeMailer struct {
	email, code string
	err         error
}

func (m *fakeMailer) SendOTP(_ context.Context, email, code string) error {
	if m.err != nil {
		return m.err
	}
	m.email, m.code = email, code
	return nil
}
