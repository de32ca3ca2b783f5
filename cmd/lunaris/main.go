package main

import (
	"os"

	"github.com/wonny/lunaris/cmd/lunaris/commands"
)

// main is the entry point for the lunaris CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/lunaris [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
