package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/lunaris/internal/pipeline"
	"github.com/wonny/lunaris/internal/prices"
	"github.com/wonny/lunaris/pkg/logger"
)

// LabelRunner runs a labeling pass (pipeline.Orchestrator)
type LabelRunner interface {
	Run(ctx context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error)
}

// LabelPricesJob re-reads the price file, labels it and persists the result
type LabelPricesJob struct {
	runner   LabelRunner
	csvPath  string
	location *time.Location
	schedule string
	logger   *logger.Logger
}

// NewLabelPricesJob creates a new labeling job
func NewLabelPricesJob(runner LabelRunner, csvPath string, loc *time.Location, schedule string, log *logger.Logger) *LabelPricesJob {
	if schedule == "" {
		schedule = "0 30 3 * * *" // every day at 03:30
	}
	return &LabelPricesJob{
		runner:   runner,
		csvPath:  csvPath,
		location: loc,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *LabelPricesJob) Name() string {
	return "label_prices"
}

// Schedule returns the cron schedule
func (j *LabelPricesJob) Schedule() string {
	return j.schedule
}

// Run executes the labeling pass
func (j *LabelPricesJob) Run(ctx context.Context) error {
	ticks, err := prices.ReadCSVFile(j.csvPath, j.location)
	if err != nil {
		return fmt.Errorf("read prices: %w", err)
	}

	result, err := j.runner.Run(ctx, pipeline.RunConfig{
		RunID:   fmt.Sprintf("scheduled-%s", time.Now().UTC().Format("20060102T150405")),
		Prices:  ticks,
		Persist: true,
	})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"labeled":      len(result.Labeled),
		"out_of_range": result.OutOfRange,
	}).Info("Scheduled labeling completed")
	return nil
}
