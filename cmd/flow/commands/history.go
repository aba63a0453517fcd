package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/moneyflow/internal/api/handlers"
	"github.com/wonny/moneyflow/internal/flow"
)

// historyCmd lists stored dashboard snapshots
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "저장된 대시보드 스냅샷 조회 (DB 필요)",
	Long: `스케줄러가 저장한 대시보드 스냅샷을 조회합니다.

Example:
  go run ./cmd/flow history
  go run ./cmd/flow history --limit 50
  go run ./cmd/flow history --latest`,
	RunE: runHistory,
}

var (
	historyLimit  int
	historyLatest bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", flow.DefaultHistoryLimit, "조회 개수")
	historyCmd.Flags().BoolVar(&historyLatest, "latest", false, "최신 스냅샷 전체 출력")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), historyRequired)
	if err != nil {
		return err
	}
	defer a.Close()

	w := cmd.OutOrStdout()

	if historyLatest {
		snap, err := a.repo.LatestSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(w, handlers.NewDashboardView(snap.Dashboard))
		}
		printDashboard(w, snap.Dashboard)
		return nil
	}

	snapshots, err := a.repo.ListSnapshots(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(w, snapshots)
	}

	printHeader(w, "Snapshot History")
	printSnapshots(w, snapshots)
	return nil
}
