package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/risk"
)

const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
)

// AdminService backs the admin dashboard. Callers are expected to have
// checked the admin flag already.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager) *AdminService {
	return &AdminService{db: db, repomanager: m}
}

// AuditLogs returns the newest events. limit <= 0 means DefaultAuditLimit;
// larger values are capped at MaxAuditLimit.
func (s *AdminService) AuditLogs(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	switch {
	case limit <= 0:
		limit = DefaultAuditLimit
	case limit > MaxAuditLimit:
		limit = MaxAuditLimit
	}

	events, err := s.repomanager.Audit(s.db).List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing audit events: %w", err)
	}
	return events, nil
}

func (s *AdminService) Stats(ctx context.Context) (*models.Stats, error) {
	users, err := s.repomanager.Users(s.db).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting users: %w", err)
	}

	fs, err := s.repomanager.Files(s.db).Stats(ctx, risk.WarningFrom, risk.CriticalFrom)
	if err != nil {
		return nil, err
	}
	fs.AvgRisk = math.Round(fs.AvgRisk*10) / 10

	return &models.Stats{TotalUsers: users, Files: *fs}, nil
}
