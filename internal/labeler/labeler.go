// Package labeler assigns a phase and a calendar period to external timestamps
// using a finished phase timeline.
package labeler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/phase"
)

// ErrInvalidPeriods is returned for unordered or malformed period lists
var ErrInvalidPeriods = errors.New("invalid periods")

// chunkSize is the number of ticks labeled per goroutine in LabelAll
const chunkSize = 4096

// DefaultPeriods returns pre-pandemic (through 2020-03-01), pandemic
// (through 2021-12-31) and open-ended post-pandemic.
// Both cutoff dates are inclusive; the legacy CSV tooling ended pre-pandemic
// before 2020-03-01 00:00, so ticks on that day now label as pre-pandemic.
func DefaultPeriods() []contracts.Period {
	return []contracts.Period{
		{Name: "pre-pandemic", End: time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Name: "pandemic", End: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "post-pandemic"},
	}
}

// Labeler answers phase/period lookups against one timeline.
// Safe for concurrent use; it never mutates the timeline.
type Labeler struct {
	timeline *phase.Timeline
	instants []time.Time
	periods  []contracts.Period
}

// New creates a Labeler. Periods must have strictly increasing ends and only
// the last one may be open ended.
func New(tl *phase.Timeline, periods []contracts.Period) (*Labeler, error) {
	if tl == nil || tl.Len() == 0 {
		return nil, fmt.Errorf("labeler: empty timeline")
	}
	if err := ValidatePeriods(periods); err != nil {
		return nil, err
	}

	instants := make([]time.Time, tl.Len())
	for i := range instants {
		instants[i] = tl.At(i).Instant
	}

	return &Labeler{
		timeline: tl,
		instants: instants,
		periods:  append([]contracts.Period(nil), periods...),
	}, nil
}

// ValidatePeriods checks ordering of a period list
func ValidatePeriods(periods []contracts.Period) error {
	for i, p := range periods {
		if p.Name == "" {
			return fmt.Errorf("%w: period %d has no name", ErrInvalidPeriods, i)
		}
		if p.Unbounded() {
			if i != len(periods)-1 {
				return fmt.Errorf("%w: only the last period may be open ended (%q)", ErrInvalidPeriods, p.Name)
			}
			continue
		}
		if i > 0 && !p.End.After(periods[i-1].End) {
			return fmt.Errorf("%w: %q must end after %q", ErrInvalidPeriods, p.Name, periods[i-1].Name)
		}
	}
	return nil
}

// Timeline returns the timeline the labeler reads from
func (l *Labeler) Timeline() *phase.Timeline {
	return l.timeline
}

// Periods returns a copy of the configured periods
func (l *Labeler) Periods() []contracts.Period {
	return append([]contracts.Period(nil), l.periods...)
}

// Boundary returns the boundary active at t. A boundary instant belongs to the
// phase it starts. Outside [range_start, range_end] the nearest boundary is
// returned with outOfRange set.
func (l *Labeler) Boundary(t time.Time) (b contracts.PhaseBoundary, outOfRange bool) {
	if t.Before(l.instants[0]) {
		return l.timeline.At(0), true
	}

	// first boundary strictly after t, minus one
	i := sort.Search(len(l.instants), func(i int) bool {
		return l.instants[i].After(t)
	}) - 1

	return l.timeline.At(i), t.After(l.timeline.RangeEnd())
}

// Period returns the name of the period containing t, or "" without periods.
// Past the last bounded cutoff the last period applies.
func (l *Labeler) Period(t time.Time) string {
	if len(l.periods) == 0 {
		return ""
	}
	for _, p := range l.periods {
		if !p.Unbounded() && t.Before(p.End) {
			return p.Name
		}
	}
	return l.periods[len(l.periods)-1].Name
}

// Label returns the phase and period of t
func (l *Labeler) Label(t time.Time) contracts.LabeledTick {
	b, outOfRange := l.Boundary(t)
	return contracts.LabeledTick{
		Timestamp:  t.UTC(),
		PhaseIndex: b.PhaseIndex,
		PhaseName:  b.PhaseName,
		PeriodName: l.Period(t),
		OutOfRange: outOfRange,
	}
}

// LabelAll labels price ticks in parallel chunks. Output order matches input.
func (l *Labeler) LabelAll(ctx context.Context, ticks []contracts.PriceTick) ([]contracts.LabeledPrice, error) {
	out := make([]contracts.LabeledPrice, len(ticks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for start := 0; start < len(ticks); start += chunkSize {
		end := min(start+chunkSize, len(ticks))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				label := l.Label(ticks[i].Timestamp)
				out[i] = contracts.LabeledPrice{
					PriceTick:  ticks[i],
					PhaseName:  label.PhaseName,
					PeriodName: label.PeriodName,
					OutOfRange: label.OutOfRange,
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountOutOfRange returns how many labeled prices were clamped
func CountOutOfRange(prices []contracts.LabeledPrice) int {
	n := 0
	for _, p := range prices {
		if p.OutOfRange {
			n++
		}
	}
	return n
}
