// Package audit appends security-relevant events to the audit log.
package audit

import (
	"context"

	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
)

const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusRateLimited = "rate_limited"
	StatusRevoked     = "revoked"
	StatusQuarantined = "quarantined"
)

type Store interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

// Recorder writes audit events. A failed write is logged, never returned:
// losing an audit row must not fail the operation being audited.
type Recorder struct {
	store  Store
	clock  timex.Clock
	logger logging.Logger
}

func NewRecorder(store Store, logger logging.Logger, clock timex.Clock) *Recorder {
	return &Recorder{store: store, clock: clock, logger: logger.With("module", "audit")}
}

func (r *Recorder) Record(ctx context.Context, username, action, status string) {
	ev := &models.AuditEvent{
		Timestamp:     r.clock(),
		Username:      username,
		Action:        action,
		Status:        status,
		SourceAddress: SourceFromContext(ctx),
	}
	if err := r.store.Append(ctx, ev); err != nil {
		r.logger.Error(ctx, "audit append failed", "user", username, "action", action, "status", status, "error", err)
	}
}

type sourceKey struct{}

// ContextWithSource attaches the caller's network address for later events.
func ContextWithSource(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, sourceKey{}, addr)
}

// SourceFromContext returns the caller address, or "system" for background
// work.
func SourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "system"
}
