package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스냅샷 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/flow scheduler start
  go run ./cmd/flow scheduler list
  go run ./cmd/flow scheduler run flow_snapshot`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- flow_snapshot: 평일 16:15 뉴욕 (FLOW_SNAPSHOT_SCHEDULE)
- snapshot_retention: 매일 03:00 (DB 설정 시, FLOW_RETENTION_SCHEDULE)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sector Money-Flow Scheduler ===")

	a, err := newApp(cmd.Context(), historyOptional)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler(nil)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.Jobs() {
		next, _ := sched.NextRun(name)
		fmt.Printf("  - %s (next: %s)\n", name, next.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), historyOptional)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler(nil)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Registered jobs:")
	stats := sched.Stats()
	for _, name := range sched.Jobs() {
		fmt.Fprintf(w, "  - %-20s %s\n", name, stats[name].Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(cmd.Context(), historyOptional)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler(nil)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Running job: %s\n", jobName)

	result, err := sched.RunJobNow(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	printKeyValue(w, "Duration", result.Duration.String(), 8)
	printKeyValue(w, "Attempts", fmt.Sprint(result.Attempts), 8)
	if !result.Success {
		printWarning(w, result.Error)
		return fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}

	fmt.Fprintf(w, "✅ Job %s completed\n", jobName)
	return nil
}
