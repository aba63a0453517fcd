package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/moneyflow/pkg/logger"
	"github.com/wonny/moneyflow/pkg/metrics"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32 // 앞에서부터 실패할 횟수
	calls    atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return errors.New("boom")
	}
	return nil
}

func testScheduler() *Scheduler {
	return New(logger.Nop(), Options{MaxRetries: 2, Location: time.UTC})
}

func TestAddJob(t *testing.T) {
	s := testScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "0 0 * * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "@every 1h"}))

	err := s.AddJob(&fakeJob{name: "a", schedule: "0 0 * * * *"})
	assert.ErrorContains(t, err, "already exists")

	err = s.AddJob(&fakeJob{name: "bad", schedule: "not a cron"})
	assert.ErrorContains(t, err, "failed to schedule job bad")

	assert.Equal(t, []string{"a", "b"}, s.Jobs())
}

func TestRemoveJob(t *testing.T) {
	s := testScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@every 1h"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.Jobs())
	assert.Error(t, s.RemoveJob("a"))

	// 제거 후 같은 이름으로 다시 등록 가능
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@every 1h"}))
}

func TestRunJobNow(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		wantSuccess  bool
		wantAttempts int
	}{
		{"first try", 0, true, 1},
		{"succeeds on retry", 2, true, 3},
		{"exhausts retries", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScheduler()
			job := &fakeJob{name: "job", schedule: "@every 1h", failures: tt.failures}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJobNow(context.Background(), "job")
			require.NoError(t, err)

			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, int32(tt.wantAttempts), job.calls.Load())
			if !tt.wantSuccess {
				assert.Equal(t, "boom", result.Error)
			}

			history, err := s.JobHistory("job")
			require.NoError(t, err)
			require.Len(t, history.Results, 1)
			assert.Equal(t, tt.wantSuccess, history.Results[0].Success)
		})
	}
}

func TestRunJobNowUnknown(t *testing.T) {
	_, err := testScheduler().RunJobNow(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestRunJobNowCanceled(t *testing.T) {
	s := New(logger.Nop(), Options{MaxRetries: 3, RetryDelay: time.Hour, Location: time.UTC})
	require.NoError(t, s.AddJob(&fakeJob{name: "job", schedule: "@every 1h", failures: 10}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.RunJobNow(ctx, "job")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, context.Canceled.Error(), result.Error)
}

func TestRunJobAsync(t *testing.T) {
	s := testScheduler()
	job := &fakeJob{name: "job", schedule: "@every 1h"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("job"))
	s.Stop()

	assert.Equal(t, int32(1), job.calls.Load())
	assert.Error(t, s.RunJob("missing"))
}

func TestStats(t *testing.T) {
	s := New(logger.Nop(), Options{Location: time.UTC})
	require.NoError(t, s.AddJob(&fakeJob{name: "ok", schedule: "@every 1h"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "bad", schedule: "@every 2h", failures: 100}))

	for i := 0; i < 3; i++ {
		_, err := s.RunJobNow(context.Background(), "ok")
		require.NoError(t, err)
	}
	_, err := s.RunJobNow(context.Background(), "bad")
	require.NoError(t, err)

	stats := s.Stats()
	require.Len(t, stats, 2)

	ok := stats["ok"]
	assert.Equal(t, 3, ok.TotalRuns)
	assert.Equal(t, 3, ok.SuccessCount)
	assert.Equal(t, 1.0, ok.SuccessRate)
	assert.NotNil(t, ok.LastSuccess)
	assert.Nil(t, ok.LastFailure)

	bad := stats["bad"]
	assert.Equal(t, "@every 2h", bad.Schedule)
	assert.Equal(t, 1, bad.FailureCount)
	assert.Equal(t, 0.0, bad.SuccessRate)
	assert.NotNil(t, bad.LastFailure)
}

func TestJobMetrics(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig())
	s := New(logger.Nop(), Options{Location: time.UTC, Metrics: m})
	require.NoError(t, s.AddJob(&fakeJob{name: "ok", schedule: "@every 1h"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "bad", schedule: "@every 1h", failures: 1}))

	_, err := s.RunJobNow(context.Background(), "ok")
	require.NoError(t, err)
	_, err = s.RunJobNow(context.Background(), "bad")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "moneyflow_scheduler_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestJobHistoryLatest(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+5; i++ {
		h.Add(JobResult{Attempts: i, Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Equal(t, 5, h.Results[0].Attempts)

	latest := h.Latest(2)
	require.Len(t, latest, 2)
	assert.Equal(t, maxHistory+3, latest[0].Attempts)
	assert.Equal(t, maxHistory+4, latest[1].Attempts)

	latest[0].Attempts = -1
	assert.NotEqual(t, -1, h.Results[maxHistory-2].Attempts)

	assert.Empty(t, h.Latest(0))
	assert.Len(t, h.Latest(1000), maxHistory)
	assert.InDelta(t, 0.5, h.SuccessRate(), 0.01)
}

func TestNextRun(t *testing.T) {
	s := testScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "job", schedule: "@every 1h"}))

	s.Start()
	defer s.Stop()

	next, err := s.NextRun("job")
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()))

	_, err = s.NextRun("missing")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("0 15 16 * * MON-FRI"))
	assert.NoError(t, Validate("@every 30m"))
	assert.Error(t, Validate("15 16 * * MON-FRI")) // 초 필드 없음
	assert.Error(t, Validate(""))
}
