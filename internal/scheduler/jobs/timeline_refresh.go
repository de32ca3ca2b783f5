package jobs

import (
	"context"

	"github.com/wonny/lunaris/internal/phase"
	"github.com/wonny/lunaris/pkg/logger"
)

// TimelineRebuilder rebuilds, stores and caches the study timeline
type TimelineRebuilder interface {
	RebuildTimeline(ctx context.Context) (*phase.Timeline, error)
}

// TimelineRefreshJob rebuilds the phase timeline on a schedule so the
// store and cache follow oracle or config changes
type TimelineRefreshJob struct {
	rebuilder TimelineRebuilder
	schedule  string
	logger    *logger.Logger
}

// NewTimelineRefreshJob creates a new timeline refresh job
func NewTimelineRefreshJob(rebuilder TimelineRebuilder, schedule string, log *logger.Logger) *TimelineRefreshJob {
	if schedule == "" {
		schedule = "0 0 3 * * 0" // Sunday 03:00
	}
	return &TimelineRefreshJob{
		rebuilder: rebuilder,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *TimelineRefreshJob) Name() string {
	return "timeline_refresh"
}

// Schedule returns the cron schedule
func (j *TimelineRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the rebuild
func (j *TimelineRefreshJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled timeline rebuild")

	tl, err := j.rebuilder.RebuildTimeline(ctx)
	if err != nil {
		return err
	}

	j.logger.WithField("boundaries", tl.Len()).Info("Timeline refresh completed")
	return nil
}
