package labeler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/phase"
)

var (
	rangeStart = time.Date(2021, 12, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2022, 1, 31, 0, 0, 0, 0, time.UTC)
)

// testTimeline: phase 6 at range_start, then 7, 0, 1
func testTimeline(t *testing.T) *phase.Timeline {
	t.Helper()
	names := phase.DefaultPhaseNames(8)
	tl, err := phase.FromSnapshot(&contracts.PhaseTimelineSnapshot{
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		PhaseCount: 8,
		Boundaries: []contracts.PhaseBoundary{
			{Instant: rangeStart, PhaseIndex: 6, PhaseName: names[6]},
			{Instant: time.Date(2021, 12, 27, 2, 24, 0, 0, time.UTC), PhaseIndex: 7, PhaseName: names[7]},
			{Instant: time.Date(2022, 1, 2, 18, 33, 0, 0, time.UTC), PhaseIndex: 0, PhaseName: names[0]},
			{Instant: time.Date(2022, 1, 6, 8, 10, 0, 0, time.UTC), PhaseIndex: 1, PhaseName: names[1]},
		},
	})
	require.NoError(t, err)
	return tl
}

func newTestLabeler(t *testing.T) *Labeler {
	t.Helper()
	l, err := New(testTimeline(t), DefaultPeriods())
	require.NoError(t, err)
	return l
}

func TestLabel_Phase(t *testing.T) {
	l := newTestLabeler(t)
	newMoon := time.Date(2022, 1, 2, 18, 33, 0, 0, time.UTC)

	tests := []struct {
		name       string
		at         time.Time
		wantPhase  string
		outOfRange bool
	}{
		{"at range_start", rangeStart, "Last Quarter", false},
		{"inside first phase", time.Date(2021, 12, 10, 0, 0, 0, 0, time.UTC), "Last Quarter", false},
		{"just before boundary", newMoon.Add(-time.Nanosecond), "Waning Crescent", false},
		{"at boundary instant", newMoon, "New Moon", false},
		{"just after boundary", newMoon.Add(time.Second), "New Moon", false},
		{"last phase", time.Date(2022, 1, 20, 0, 0, 0, 0, time.UTC), "Waxing Crescent", false},
		{"at range_end", rangeEnd, "Waxing Crescent", false},
		{"before range_start", rangeStart.Add(-time.Minute), "Last Quarter", true},
		{"after range_end", rangeEnd.Add(time.Minute), "Waxing Crescent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Label(tt.at)
			assert.Equal(t, tt.wantPhase, got.PhaseName)
			assert.Equal(t, tt.outOfRange, got.OutOfRange)
		})
	}
}

func TestLabel_Period(t *testing.T) {
	l := newTestLabeler(t)

	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), "pre-pandemic"},
		{time.Date(2020, 3, 1, 23, 59, 0, 0, time.UTC), "pre-pandemic"},
		{time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC), "pandemic"},
		{time.Date(2021, 12, 31, 23, 59, 59, 0, time.UTC), "pandemic"},
		{time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), "post-pandemic"},
		{time.Date(2022, 1, 1, 0, 0, 1, 0, time.UTC), "post-pandemic"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, l.Label(tt.at).PeriodName, tt.at.String())
	}
}

func TestPeriod_PastLastBoundedCutoff(t *testing.T) {
	l, err := New(testTimeline(t), []contracts.Period{
		{Name: "early", End: time.Date(2021, 12, 15, 0, 0, 0, 0, time.UTC)},
		{Name: "late", End: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	assert.Equal(t, "early", l.Period(time.Date(2021, 12, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "late", l.Period(time.Date(2022, 1, 20, 0, 0, 0, 0, time.UTC)))
}

func TestPeriod_None(t *testing.T) {
	l, err := New(testTimeline(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "", l.Label(rangeStart).PeriodName)
}

func TestValidatePeriods(t *testing.T) {
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name    string
		periods []contracts.Period
		wantErr bool
	}{
		{"defaults", DefaultPeriods(), false},
		{"empty", nil, false},
		{"single open ended", []contracts.Period{{Name: "all"}}, false},
		{"unnamed", []contracts.Period{{End: d(2020, 1, 1)}}, true},
		{"open ended in the middle", []contracts.Period{{Name: "a"}, {Name: "b", End: d(2020, 1, 1)}}, true},
		{"equal cutoffs", []contracts.Period{{Name: "a", End: d(2020, 1, 1)}, {Name: "b", End: d(2020, 1, 1)}}, true},
		{"decreasing cutoffs", []contracts.Period{{Name: "a", End: d(2021, 1, 1)}, {Name: "b", End: d(2020, 1, 1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePeriods(tt.periods)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriods)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RejectsEmptyTimeline(t *testing.T) {
	_, err := New(nil, DefaultPeriods())
	assert.Error(t, err)
}

func TestLabelAll_PreservesOrder(t *testing.T) {
	l := newTestLabeler(t)

	// more than one chunk, minute bars starting before range_start
	n := chunkSize*2 + 17
	start := rangeStart.Add(-10 * time.Minute)
	ticks := make([]contracts.PriceTick, n)
	for i := range ticks {
		ticks[i] = contracts.PriceTick{
			Timestamp: start.Add(time.Duration(i) * 20 * time.Minute),
			Close:     decimal.NewFromInt(int64(i)),
		}
	}

	labeled, err := l.LabelAll(context.Background(), ticks)
	require.NoError(t, err)
	require.Len(t, labeled, n)

	for i, lp := range labeled {
		require.True(t, lp.Close.Equal(decimal.NewFromInt(int64(i))), "tick %d out of order", i)
		want := l.Label(ticks[i].Timestamp)
		assert.Equal(t, want.PhaseName, lp.PhaseName)
		assert.Equal(t, want.PeriodName, lp.PeriodName)
		assert.Equal(t, want.OutOfRange, lp.OutOfRange)
	}

	// ticks before range_start and after range_end are flagged
	assert.True(t, labeled[0].OutOfRange)
	assert.True(t, labeled[n-1].OutOfRange)
	assert.Greater(t, CountOutOfRange(labeled), 2)
}

func TestLabelAll_Cancelled(t *testing.T) {
	l := newTestLabeler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.LabelAll(ctx, []contracts.PriceTick{{Timestamp: rangeStart}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLabelAll_Empty(t *testing.T) {
	labeled, err := newTestLabeler(t).LabelAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, labeled)
}
