package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	events []*models.AuditEvent
	err    error
}

func (m *memStore) Append(_ context.Context, ev *models.AuditEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func TestRecord(t *testing.T) {
	st := &memStore{}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRecorder(st, logging.NewNop(), func() time.Time { return at })

	ctx := ContextWithSource(context.Background(), "10.1.1.1:4000")
	r.Record(ctx, "alice", "login_password", StatusSuccess)
	r.Record(context.Background(), "alice", "quarantine:x.exe", StatusQuarantined)

	require.Len(t, st.events, 2)
	assert.Equal(t, models.AuditEvent{
		Timestamp: at, Username: "alice", Action: "login_password", Status: "success", SourceAddress: "10.1.1.1:4000",
	}, *st.events[0])
	assert.Equal(t, "system", st.events[1].SourceAddress)
}

func TestRecord_StoreErrorIsSwallowed(t *testing.T) {
	st := &memStore{err: errors.New("db down")}
	r := NewRecorder(st, logging.NewNop(), time.Now)

	assert.NotPanics(t, func() {
		r.Record(context.Background(), "alice", "logout", StatusSuccess)
	})
}
