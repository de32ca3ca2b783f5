package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/lunaris/internal/phase"
	"github.com/wonny/lunaris/internal/pipeline"
	"github.com/wonny/lunaris/internal/prices"
)

// phasesCmd represents the phases command
var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "위상 경계 타임라인 출력",
	Long: `Resolves the phase timeline of the study (cache → database → scan)
and writes it as TimestampUTC,PhaseName CSV.

Example:
  go run ./cmd/lunaris phases
  go run ./cmd/lunaris phases --rebuild --out boundaries.csv`,
	RunE: runPhases,
}

var (
	phasesOut     string
	phasesRebuild bool
)

func init() {
	rootCmd.AddCommand(phasesCmd)

	phasesCmd.Flags().StringVarP(&phasesOut, "out", "o", "", "output CSV (default stdout)")
	phasesCmd.Flags().BoolVar(&phasesRebuild, "rebuild", false, "ignore cache/database and rescan")
}

func runPhases(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	startTime := time.Now()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.orchestrator.PhaseConfig()
	PrintHeader("Phase timeline", [][2]string{
		{"Study", a.study.Meta.StudyID},
		{"Range", fmt.Sprintf("%s ~ %s", cfg.RangeStart.Format(time.RFC3339), cfg.RangeEnd.Format(time.RFC3339))},
		{"Refine", string(cfg.Refine)},
	})

	var (
		tl     *phase.Timeline
		source = pipeline.SourceBuilt
	)
	if phasesRebuild {
		tl, err = a.orchestrator.RebuildTimeline(ctx)
	} else {
		tl, source, err = a.orchestrator.Timeline(ctx)
	}
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(phasesOut)
	if err != nil {
		return err
	}
	if err := prices.WriteBoundariesCSV(w, tl.Boundaries()); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	printPhaseCounts(tl, cfg)

	snap := tl.Snapshot()
	if n := snap.ClampedCount(); n > 0 {
		PrintWarning(fmt.Sprintf("%d boundaries were clamped to a range edge", n))
	}
	PrintSuccess(fmt.Sprintf("%d boundaries (%s) in %.2fs", tl.Len(), source, time.Since(startTime).Seconds()))
	return nil
}

func printPhaseCounts(tl *phase.Timeline, cfg phase.Config) {
	counts := make([]int, tl.PhaseCount())
	for _, b := range tl.Boundaries() {
		counts[b.PhaseIndex]++
	}

	widths := []int{4, 18, 6}
	PrintTableHeader([]string{"#", "Phase", "Starts"}, widths)
	for i, n := range counts {
		PrintTableRow([]string{strconv.Itoa(i), cfg.PhaseName(i), strconv.Itoa(n)}, widths)
	}
}
