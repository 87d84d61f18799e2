// Package worker runs periodic background jobs.
package worker

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
)

// Job is one unit of periodic work. An error is logged and the loop goes on.
type Job func(ctx context.Context) error

// Loop runs job immediately and then every interval until ctx is cancelled.
func Loop(ctx context.Context, name string, interval time.Duration, logger logging.Logger, job Job) {
	logger = logger.With("worker", name)
	logger.Info(ctx, "worker started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := job(ctx); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "worker job failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "worker stopped")
			return
		case <-ticker.C:
		}
	}
}
