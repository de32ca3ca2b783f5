package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/lunaris/internal/api"
	"github.com/wonny/lunaris/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `Starts the phase lookup REST API.

Endpoints:
  GET  /health                 - Health check
  GET  /api/phases?from=&to=   - Phase boundaries (RFC3339 filters)
  GET  /api/label?at=          - Phase and period of an instant
  POST /api/timeline/rebuild   - Rescan and replace the timeline

Example:
  go run ./cmd/lunaris api
  go run ./cmd/lunaris api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	phaseHandler := handlers.NewPhaseHandler(a.orchestrator, a.log)
	router := api.NewRouter(phaseHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	PrintHeader("Lunaris API", [][2]string{
		{"URL", fmt.Sprintf("http://localhost:%s", a.cfg.Port)},
		{"Study", a.study.Meta.StudyID},
	})
	fmt.Fprintln(console, "Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
