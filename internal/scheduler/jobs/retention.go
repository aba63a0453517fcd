package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/moneyflow/pkg/logger"
)

// SnapshotPruner deletes snapshots older than a cutoff
type SnapshotPruner interface {
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}

// RetentionJob removes snapshots older than the retention window
type RetentionJob struct {
	pruner    SnapshotPruner
	retention time.Duration
	schedule  string
	now       func() time.Time
	logger    *logger.Logger
}

// NewRetentionJob creates a new snapshot retention job
func NewRetentionJob(pruner SnapshotPruner, retention time.Duration, schedule string, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		pruner:    pruner,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
		logger:    log.WithField("job", "snapshot_retention"),
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "snapshot_retention"
}

// Schedule returns the cron schedule (default: daily 03:00)
func (j *RetentionJob) Schedule() string {
	return j.schedule
}

// Run deletes expired snapshots
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	removed, err := j.pruner.PruneSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Snapshot retention completed")
	}

	return nil
}
