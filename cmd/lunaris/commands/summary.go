package commands

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "저장된 라벨 통계 조회",
	Long: `Counts the labeled ticks stored for the current study per period and phase.
Requires DATABASE_URL.

Example:
  go run ./cmd/lunaris summary --study config/study/eurusd_2019_2024.yaml`,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.repo == nil {
		return errors.New("summary needs DATABASE_URL")
	}

	rows, err := a.repo.SummarizeLabeledPrices(ctx, a.orchestrator.TimelineKey())
	if err != nil {
		return err
	}

	PrintHeader("Stored labels", [][2]string{
		{"Study", a.study.Meta.StudyID},
		{"Key", a.orchestrator.TimelineKey()[:12]},
	})

	widths := []int{16, 18, 10}
	PrintTableHeader([]string{"Period", "Phase", "Ticks"}, widths)
	var total int64
	for _, r := range rows {
		PrintTableRow([]string{r.PeriodName, r.PhaseName, strconv.FormatInt(r.Ticks, 10)}, widths)
		total += r.Ticks
	}
	PrintSeparator()
	PrintKeyValue("Total", strconv.FormatInt(total, 10), 10)
	return nil
}
