package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	sectorsFile string
	jsonOutput  bool
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flow",
	Short: "Sector money-flow dashboard",
	Long: `Sector Money-Flow CLI

섹터 ETF 등락률/거래대금 → 상위 섹터 선정 → 섹터별 거래대금 상위 종목.

Usage:
  go run ./cmd/flow [command]

Examples:
  go run ./cmd/flow sectors
  go run ./cmd/flow top --k 5
  go run ./cmd/flow stocks SMH
  go run ./cmd/flow dashboard --json
  go run ./cmd/flow api --with-scheduler`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&sectorsFile, "sectors", "", "sector definition YAML (default: built-in)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
