package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/moneyflow/internal/api"
	"github.com/wonny/moneyflow/internal/api/handlers"
	"github.com/wonny/moneyflow/internal/scheduler"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 대시보드 WebSocket 스트림 제공
- (선택) 스냅샷 스케줄러 실행

Endpoints:
  GET  /health                          - Health check
  GET  /api/flow/sectors                - 섹터 테이블
  GET  /api/flow/top?k=3                - 상위 섹터
  GET  /api/flow/sectors/{label}/stocks - 섹터 리더 종목
  GET  /api/flow/dashboard?k=3          - 전체 대시보드
  GET  /api/flow/history?limit=20       - 스냅샷 이력 (DB 필요)
  GET  /metrics                         - Prometheus (METRICS_ENABLED)
  WS   /ws/dashboard                    - 대시보드 스트림

Example:
  go run ./cmd/flow api
  go run ./cmd/flow api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "스냅샷 스케줄러 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sector Money-Flow API Server ===")

	// 1. Wire dependencies (DB optional)
	a, err := newApp(cmd.Context(), historyOptional)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port":    a.cfg.Port,
		"env":     a.cfg.Env,
		"sectors": a.def.Len(),
		"history": a.repo != nil,
	}).Info("Initializing API server")

	// 2. Create stream hub, handler and router
	hub := api.NewHub(log)
	defer hub.Close()

	flowHandler := handlers.NewFlowHandler(a.service, a.history(), log)
	router := api.NewRouter(flowHandler, hub, a.metrics, log)

	// 3. Optional scheduler (snapshots are pushed to the hub)
	var sched *scheduler.Scheduler
	if withScheduler {
		sched, err = a.newScheduler(hub)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
	}

	// 4. Start server with graceful shutdown
	server := api.New(a.cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	if sched != nil {
		fmt.Printf("   Scheduler jobs: %v\n", sched.Jobs())
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
	}

	log.Info("Shutting down server...")

	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if serveErr != nil {
		return serveErr
	}

	log.Info("Server stopped")
	return nil
}
