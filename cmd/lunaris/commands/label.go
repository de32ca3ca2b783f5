package commands

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/pipeline"
	"github.com/wonny/lunaris/internal/prices"
)

// labelCmd represents the label command
var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "가격 데이터에 위상/기간 라벨 부여",
	Long: `Reads a minute-bar price CSV, labels every tick with the lunar phase
and market period in effect, and writes the labeled CSV.

Pipeline:
  timeline → range check → label → persist (--persist, needs DATABASE_URL)

Example:
  go run ./cmd/lunaris label --prices data/eur_usd_m1.csv --tz Europe/Madrid
  go run ./cmd/lunaris label --out labeled.csv --persist`,
	RunE: runLabel,
}

var (
	labelPrices         string
	labelTZ             string
	labelOut            string
	labelPersist        bool
	labelSkipRangeCheck bool
)

func init() {
	rootCmd.AddCommand(labelCmd)

	labelCmd.Flags().StringVar(&labelPrices, "prices", "", "price CSV (default PRICE_CSV)")
	labelCmd.Flags().StringVar(&labelTZ, "tz", "", "timezone of the price timestamps (default PRICE_TZ)")
	labelCmd.Flags().StringVarP(&labelOut, "out", "o", "", "output CSV (default stdout)")
	labelCmd.Flags().BoolVar(&labelPersist, "persist", false, "save labeled prices to the database")
	labelCmd.Flags().BoolVar(&labelSkipRangeCheck, "skip-range-check", false, "label ticks outside the study range")
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path := labelPrices
	if path == "" {
		path = a.cfg.PriceCSV
	}
	tz := labelTZ
	if tz == "" {
		tz = a.cfg.PriceTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", tz, err)
	}

	ticks, err := prices.ReadCSVFile(path, loc)
	if err != nil {
		return err
	}

	PrintHeader("Price labeling", [][2]string{
		{"Study", a.study.Meta.StudyID},
		{"Prices", path},
		{"Ticks", strconv.Itoa(len(ticks))},
		{"Timezone", tz},
	})

	if labelPersist && a.repo == nil {
		PrintWarning("--persist ignored: DATABASE_URL not set")
	}

	result, err := a.orchestrator.Run(ctx, pipeline.RunConfig{
		RunID:          fmt.Sprintf("cli-%s", time.Now().UTC().Format("20060102T150405")),
		Prices:         ticks,
		SkipRangeCheck: labelSkipRangeCheck,
		Persist:        labelPersist,
	})
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(labelOut)
	if err != nil {
		return err
	}
	if err := prices.WriteLabeledCSV(w, result.Labeled); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	printLabelCounts(result.Labeled)

	if result.OutOfRange > 0 {
		PrintWarning(fmt.Sprintf("%d ticks outside the timeline were clamped", result.OutOfRange))
	}
	PrintSuccess(fmt.Sprintf("%d ticks labeled (timeline: %s) in %.2fs",
		len(result.Labeled), result.TimelineSource, result.Duration.Seconds()))
	return nil
}

func printLabelCounts(labeled []contracts.LabeledPrice) {
	type key struct{ period, phase string }
	counts := make(map[key]int)
	for _, lp := range labeled {
		counts[key{lp.PeriodName, lp.PhaseName}]++
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].period != keys[j].period {
			return keys[i].period < keys[j].period
		}
		return keys[i].phase < keys[j].phase
	})

	widths := []int{16, 18, 10}
	PrintTableHeader([]string{"Period", "Phase", "Ticks"}, widths)
	for _, k := range keys {
		PrintTableRow([]string{k.period, k.phase, strconv.Itoa(counts[k])}, widths)
	}
}
