package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	studyFile string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lunaris",
	Short: "Lunaris - 달 위상 경계 스캐너 / 가격 라벨러",
	Long: `Lunaris CLI

Scans lunar phase boundaries over a study range and labels price ticks
with the phase and market period in effect.

Usage:
  go run ./cmd/lunaris [command]

Examples:
  go run ./cmd/lunaris phases --out boundaries.csv
  go run ./cmd/lunaris label --prices data/eur_usd_m1.csv --out labeled.csv
  go run ./cmd/lunaris api
  go run ./cmd/lunaris scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl+C / SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&studyFile, "study", "", "study config YAML (default: STUDY_CONFIG or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}
