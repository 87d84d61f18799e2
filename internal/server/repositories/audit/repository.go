package audit

import (
	"context"

	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	// List returns up to limit events, newest first.
	List(ctx context.Context, limit int) ([]*models.AuditEvent, error)
}
