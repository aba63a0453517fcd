package main

import (
	"os"

	"github.com/wonny/moneyflow/cmd/flow/commands"
)

// main is the entry point for the money-flow CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/flow [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
