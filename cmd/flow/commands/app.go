package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wonny/moneyflow/internal/api/handlers"
	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/internal/external/yahoo"
	"github.com/wonny/moneyflow/internal/flow"
	"github.com/wonny/moneyflow/internal/scheduler"
	"github.com/wonny/moneyflow/internal/scheduler/jobs"
	"github.com/wonny/moneyflow/pkg/config"
	"github.com/wonny/moneyflow/pkg/database"
	"github.com/wonny/moneyflow/pkg/httputil"
	"github.com/wonny/moneyflow/pkg/logger"
	"github.com/wonny/moneyflow/pkg/metrics"
	"github.com/wonny/moneyflow/pkg/redis"
)

// app holds the wired dependencies shared by all commands
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	def     *flow.Definition
	service *flow.Service
	metrics *metrics.Metrics // nil = METRICS_ENABLED=false

	redis *redis.Client
	db    *database.DB
	repo  *flow.Repository // nil = 스냅샷 이력 없음
}

// historyMode controls whether a command needs the snapshot database
type historyMode int

const (
	historyOff      historyMode = iota // DB 연결 안 함
	historyOptional                    // 설정돼 있으면 연결
	historyRequired                    // 없으면 에러
)

func newApp(ctx context.Context, mode historyMode) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if sectorsFile != "" {
		cfg.Flow.SectorsFile = sectorsFile
	}

	// 2. Initialize logger (stderr: stdout은 테이블 출력용)
	log := logger.NewWithWriter(cfg, os.Stderr)

	// 3. Load sector definition
	def, err := loadDefinition(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, def: def}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New(metrics.DefaultConfig())
	}

	// 4. Create HTTP client (+ shared Redis rate limit)
	httpClient := httputil.New(cfg, log)
	if cfg.Redis.Enabled {
		rc, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, using local rate limit only")
		} else {
			a.redis = rc
			httpClient = httpClient.WithRateLimiter(
				redis.NewRateLimiter(rc, "moneyflow"),
				redis.YahooRateLimitFor(cfg.Yahoo.RatePerSec),
			)
		}
	}

	// 5. Create quote source and service
	source := yahoo.NewClient(cfg, httpClient, log).WithMetrics(a.metrics)
	a.service = flow.NewService(def, source, cfg.Flow.TopSectors, log).WithMetrics(a.metrics)

	// 6. Connect snapshot database
	if mode == historyOff {
		return a, nil
	}

	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrNotConfigured) && mode == historyOptional:
		log.Info("DATABASE_URL not set, snapshot history disabled")
		return a, nil
	case err != nil:
		a.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a.db = db
	a.repo = flow.NewRepository(db.Pool, def.Hash())
	if err := a.repo.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}
	log.Info("Connected to snapshot database")

	return a, nil
}

// Close releases database and Redis connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// history returns the snapshot store as an interface, nil when disabled
func (a *app) history() handlers.HistoryStore {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

func (a *app) snapshotStore() contracts.SnapshotStore {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

// newScheduler registers the snapshot job and, with a database, the retention job
func (a *app) newScheduler(publisher contracts.DashboardPublisher) (*scheduler.Scheduler, error) {
	opts := scheduler.DefaultOptions()
	opts.Metrics = a.metrics
	sched := scheduler.New(a.log, opts)

	snapshot := jobs.NewSnapshotJob(a.service, a.snapshotStore(), publisher, a.cfg.Flow.SnapshotSchedule, a.log)
	if err := sched.AddJob(snapshot); err != nil {
		return nil, err
	}

	if a.repo != nil && a.cfg.Flow.HistoryRetention > 0 {
		retention := jobs.NewRetentionJob(a.repo, a.cfg.Flow.HistoryRetention, a.cfg.Flow.RetentionSchedule, a.log)
		if err := sched.AddJob(retention); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func loadDefinition(cfg *config.Config) (*flow.Definition, error) {
	if cfg.Flow.SectorsFile == "" {
		return flow.DefaultDefinition(), nil
	}
	def, err := flow.LoadDefinition(cfg.Flow.SectorsFile)
	if err != nil {
		return nil, fmt.Errorf("load sectors: %w", err)
	}
	return def, nil
}
