package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/vetclinic-api/pkg/logger"
)

// Purger deletes rows older than before and reports how many went
type Purger func(ctx context.Context, before time.Time) (int64, error)

// CleanupWorker periodically purges one table past its retention period
type CleanupWorker struct {
	name      string
	purge     Purger
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewCleanupWorker(name string, purge Purger, retention, interval time.Duration, log *logger.Logger) *CleanupWorker {
	return &CleanupWorker{
		name:      name,
		purge:     purge,
		retention: retention,
		interval:  interval,
		logger:    log.WithFields(map[string]interface{}{"component": "cleanup", "target": name}),
		now:       time.Now,
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error(err, "cleanup failed")
			}
		}
	}
}

func (w *CleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.purge(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up %s: %w", w.name, err)
	}

	if rows > 0 {
		w.logger.Info("cleaned up old rows", "rows", rows, "cutoff", cutoff)
	}
	return rows, nil
}
