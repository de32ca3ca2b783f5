package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/phase"
	"github.com/wonny/lunaris/internal/pipeline"
	"github.com/wonny/lunaris/pkg/logger"
)

type stubRebuilder struct {
	err error
}

func (s *stubRebuilder) RebuildTimeline(context.Context) (*phase.Timeline, error) {
	if s.err != nil {
		return nil, s.err
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return phase.FromSnapshot(&contracts.PhaseTimelineSnapshot{
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 1, 0),
		PhaseCount: 8,
		Boundaries: []contracts.PhaseBoundary{{Instant: start, PhaseIndex: 5, PhaseName: "Waning Gibbous"}},
	})
}

type stubRunner struct {
	got pipeline.RunConfig
}

func (s *stubRunner) Run(_ context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error) {
	s.got = config
	return &pipeline.RunResult{Success: true}, nil
}

func TestTimelineRefreshJob(t *testing.T) {
	job := NewTimelineRefreshJob(&stubRebuilder{}, "", logger.Nop())

	assert.Equal(t, "timeline_refresh", job.Name())
	assert.Equal(t, "0 0 3 * * 0", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))

	boom := errors.New("oracle down")
	failing := NewTimelineRefreshJob(&stubRebuilder{err: boom}, "@daily", logger.Nop())
	assert.Equal(t, "@daily", failing.Schedule())
	assert.ErrorIs(t, failing.Run(context.Background()), boom)
}

func TestLabelPricesJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,time,open,high,low,close,volume\n2024.01.02,10:00,1,2,0.5,1.5,3\n"), 0o644))

	runner := &stubRunner{}
	job := NewLabelPricesJob(runner, path, time.UTC, "", logger.Nop())

	assert.Equal(t, "label_prices", job.Name())
	require.NoError(t, job.Run(context.Background()))

	assert.True(t, runner.got.Persist)
	require.Len(t, runner.got.Prices, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), runner.got.Prices[0].Timestamp)
}

func TestLabelPricesJob_MissingFile(t *testing.T) {
	job := NewLabelPricesJob(&stubRunner{}, filepath.Join(t.TempDir(), "nope.csv"), time.UTC, "", logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}
