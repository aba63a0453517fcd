package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/moneyflow/internal/api/handlers"
	"github.com/wonny/moneyflow/internal/flow"
)

var (
	sortByMoneyFlow bool
	topK            int
)

// sectorsCmd prints the sector table
var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "섹터 ETF 등락률/거래대금 테이블",
	Long: `섹터 대표 ETF의 최근 2거래일 종가로 등락률을, 최근 거래일
종가 × 거래량으로 거래대금을 계산합니다.

Example:
  go run ./cmd/flow sectors
  go run ./cmd/flow sectors --sort-money-flow`,
	RunE: runSectors,
}

// topCmd prints the top-k sectors
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "등락률 상위 섹터",
	Long: `등락률 기준 상위 k개 섹터를 출력합니다 (동률은 정의 순서 유지).

Example:
  go run ./cmd/flow top
  go run ./cmd/flow top --k 5`,
	RunE: runTop,
}

// stocksCmd prints the leaders of one sector
var stocksCmd = &cobra.Command{
	Use:   "stocks [sector]",
	Short: "섹터별 거래대금 상위 5종목",
	Long: `섹터 구성 종목 중 최근 거래일 거래대금 상위 5종목을 출력합니다.
섹터는 라벨 또는 ETF 티커로 지정합니다.

Example:
  go run ./cmd/flow stocks SMH
  go run ./cmd/flow stocks "XLE (Energy)"`,
	Args: cobra.ExactArgs(1),
	RunE: runStocks,
}

// dashboardCmd prints a full dashboard run
var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "전체 대시보드 (섹터 테이블 + 상위 섹터 리더 + 관심종목)",
	Long: `섹터 테이블, 상위 k개 섹터의 리더 종목, 관심종목 목록을 한 번에 출력합니다.

Example:
  go run ./cmd/flow dashboard
  go run ./cmd/flow dashboard --k 5 --json`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(sectorsCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(stocksCmd)
	rootCmd.AddCommand(dashboardCmd)

	// Flags
	sectorsCmd.Flags().BoolVar(&sortByMoneyFlow, "sort-money-flow", false, "거래대금 내림차순 정렬")
	topCmd.Flags().IntVar(&topK, "k", 0, "상위 섹터 수 (default: FLOW_TOP_SECTORS)")
	dashboardCmd.Flags().IntVar(&topK, "k", 0, "상위 섹터 수 (default: FLOW_TOP_SECTORS)")
}

func runSectors(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), historyOff)
	if err != nil {
		return err
	}
	defer a.Close()

	table := a.service.SectorTable(cmd.Context())

	if sortByMoneyFlow {
		sorted := *table
		sorted.Sectors = flow.SortByMoneyFlow(table.Sectors)
		table = &sorted
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, handlers.NewTableView(table))
	}

	printHeader(w, "Sector Table")
	printTable(w, table)
	return nil
}

func runTop(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), historyOff)
	if err != nil {
		return err
	}
	defer a.Close()

	k := topK
	if k < 1 {
		k = a.service.TopK()
	}
	top := a.service.TopSectors(cmd.Context(), k)

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, top)
	}

	printHeader(w, fmt.Sprintf("Top %d Sectors", k))
	if len(top) == 0 {
		printWarning(w, "No sector data available")
		return nil
	}
	printSectors(w, top)
	return nil
}

func runStocks(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), historyOff)
	if err != nil {
		return err
	}
	defer a.Close()

	sector, ok := a.def.Find(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", flow.ErrUnknownSector, args[0])
	}

	ranking := a.service.SectorStocks(cmd.Context(), sector.Label)

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, handlers.NewRankingView(ranking))
	}

	printHeader(w, sector.Label)
	printRanking(w, ranking)
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), historyOff)
	if err != nil {
		return err
	}
	defer a.Close()

	d := a.service.Dashboard(cmd.Context(), topK)

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, handlers.NewDashboardView(d))
	}

	printDashboard(w, d)
	return nil
}
