package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/pkg/logger"
)

// ErrDashboardUnavailable is returned when the run produced no sector data.
// The scheduler retries it like any other failure.
var ErrDashboardUnavailable = errors.New("dashboard data unavailable")

// DashboardRunner produces one dashboard per call
type DashboardRunner interface {
	Dashboard(ctx context.Context, k int) *contracts.Dashboard
}

// SnapshotJob runs the dashboard, stores it and pushes it to subscribers
// ⭐ SSOT: 정기 대시보드 스냅샷은 이 Job에서만
type SnapshotJob struct {
	runner    DashboardRunner
	store     contracts.SnapshotStore      // nil = 저장 안 함
	publisher contracts.DashboardPublisher // nil = 전송 안 함
	schedule  string
	logger    *logger.Logger
}

// NewSnapshotJob creates a new snapshot job. store and publisher may be nil.
func NewSnapshotJob(runner DashboardRunner, store contracts.SnapshotStore, publisher contracts.DashboardPublisher, schedule string, log *logger.Logger) *SnapshotJob {
	return &SnapshotJob{
		runner:    runner,
		store:     store,
		publisher: publisher,
		schedule:  schedule,
		logger:    log.WithField("job", "flow_snapshot"),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "flow_snapshot"
}

// Schedule returns the cron schedule (default: 16:15 New York, weekdays)
func (j *SnapshotJob) Schedule() string {
	return j.schedule
}

// Run executes one dashboard snapshot
func (j *SnapshotJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled dashboard snapshot")

	d := j.runner.Dashboard(ctx, 0)
	if !d.Available {
		return ErrDashboardUnavailable
	}

	if j.publisher != nil {
		j.publisher.Publish(d)
	}

	if j.store != nil {
		id, err := j.store.SaveSnapshot(ctx, d)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		j.logger.WithField("snapshot_id", id).Info("Snapshot stored")
	}

	j.logger.WithFields(map[string]interface{}{
		"top_sectors": len(d.TopSectors),
		"watchlist":   len(d.Watchlist),
	}).Info("Dashboard snapshot completed")

	return nil
}
