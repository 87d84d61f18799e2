// Package quarantine demotes high-risk files in the background: their blob
// is moved under a quarantine name and the metadata row is deactivated.
package quarantine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/storage"
	"github.com/dmitrijs2005/cryptexdrive/internal/worker"
)

// Catalog is the metadata feed the monitor reads and updates.
type Catalog interface {
	ListRisky(ctx context.Context, threshold int) ([]*models.FileMetadata, error)
	Quarantine(ctx context.Context, id int64, newName string) error
}

type Auditor interface {
	Record(ctx context.Context, username, action, status string)
}

type Report struct {
	Scanned     int
	Quarantined int
	Skipped     int
	Failed      int
}

type Monitor struct {
	catalog   Catalog
	store     storage.Backend
	auditor   Auditor
	logger    logging.Logger
	threshold int
	interval  time.Duration
}

func NewMonitor(catalog Catalog, store storage.Backend, auditor Auditor, logger logging.Logger, threshold int, interval time.Duration) *Monitor {
	return &Monitor{
		catalog:   catalog,
		store:     store,
		auditor:   auditor,
		logger:    logger.With("module", "quarantine"),
		threshold: threshold,
		interval:  interval,
	}
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	worker.Loop(ctx, "quarantine", m.interval, m.logger, func(ctx context.Context) error {
		_, err := m.RunCycle(ctx)
		return err
	})
}

// RunCycle quarantines every active file scoring above the threshold. Only a
// failure to read the metadata feed is returned; per-file failures are
// counted, logged and audited.
func (m *Monitor) RunCycle(ctx context.Context) (Report, error) {
	var rep Report

	files, err := m.catalog.ListRisky(ctx, m.threshold)
	if err != nil {
		return rep, fmt.Errorf("list risky files: %w", err)
	}

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		rep.Scanned++

		moved, err := m.relocate(ctx, f)
		action := fmt.Sprintf("quarantine:%s risk=%d", f.Filename, f.RiskScore)
		switch {
		case err != nil:
			rep.Failed++
			m.logger.Error(ctx, "quarantine failed", "owner", f.Owner, "file", f.Filename, "risk", f.RiskScore, "error", err)
			m.auditor.Record(ctx, f.Owner, action, audit.StatusFailed)
		case !moved:
			rep.Skipped++
			m.logger.Warn(ctx, "risky file has no blob, skipped", "owner", f.Owner, "file", f.Filename)
		default:
			rep.Quarantined++
			m.logger.Info(ctx, "file quarantined", "owner", f.Owner, "file", f.Filename, "risk", f.RiskScore)
			m.auditor.Record(ctx, f.Owner, action, audit.StatusQuarantined)
		}
	}

	return rep, nil
}

// relocate copies the blob to its quarantine name before touching the
// original, so a crash in between leaves two copies rather than none.
func (m *Monitor) relocate(ctx context.Context, f *models.FileMetadata) (bool, error) {
	data, err := m.store.Read(ctx, f.Owner, f.Filename)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read: %w", err)
	}

	newName := f.Filename + common.QuarantineSuffix
	if err := m.store.Save(ctx, f.Owner, newName, data); err != nil {
		return false, fmt.Errorf("save %s: %w", newName, err)
	}
	if err := m.store.Delete(ctx, f.Owner, f.Filename); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return false, fmt.Errorf("delete original: %w", err)
	}
	if err := m.catalog.Quarantine(ctx, f.ID, newName); err != nil {
		return false, fmt.Errorf("update metadata: %w", err)
	}
	return true, nil
}
