// Package archive runs the periodic export of old market events to cold
// storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// lockName is shared by every replica; only the holder exports.
const lockName = "archive:events"

// Job archives events older than the retention window.
type Job struct {
	archiver  domain.Archiver
	locks     domain.LockManager
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewJob builds a Job. locks may be nil for single-replica deployments.
func NewJob(archiver domain.Archiver, locks domain.LockManager, retention time.Duration, logger *slog.Logger) *Job {
	return &Job{
		archiver:  archiver,
		locks:     locks,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Run performs one export. The cutoff is truncated to the hour so that
// replicas racing for the same window agree on the object name.
func (j *Job) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention).Truncate(time.Hour)

	if j.locks != nil {
		unlock, err := j.locks.Acquire(ctx, lockName, 30*time.Minute)
		if errors.Is(err, domain.ErrLockHeld) {
			j.logger.InfoContext(ctx, "archive: another replica holds the lock")
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("archive: lock: %w", err)
		}
		defer unlock()
	}

	j.logger.InfoContext(ctx, "archive: run started",
		slog.Time("cutoff", cutoff),
		slog.Duration("retention", j.retention),
	)
	n, err := j.archiver.ArchiveEvents(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive: events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logger.InfoContext(ctx, "archive: run complete", slog.Int64("archived", n))
	return n, nil
}

// RunCron runs the job on a five-field cron schedule until ctx ends. Failed
// runs are logged and retried at the next trigger.
func (j *Job) RunCron(ctx context.Context, expr string) error {
	sched, err := parseCron(expr)
	if err != nil {
		return fmt.Errorf("archive: cron %q: %w", expr, err)
	}
	j.logger.InfoContext(ctx, "archive: cron started", slog.String("cron", expr))

	for {
		next, err := sched.next(j.now().UTC())
		if err != nil {
			return fmt.Errorf("archive: cron %q: %w", expr, err)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.ErrorContext(ctx, "archive: run failed", slog.String("error", err.Error()))
			}
		}
	}
}
