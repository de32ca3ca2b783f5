package phase

import (
	"fmt"
	"math"
	"time"
)

// Refinement selects the fine-stage search strategy
type Refinement string

const (
	// RefineLinear steps backward one fine step at a time from the coarse hit
	RefineLinear Refinement = "linear"
	// RefineBisect binary-searches the same fine grid between the last miss and the hit
	RefineBisect Refinement = "bisect"
)

// Defaults
const (
	DefaultPhaseCount     = 8
	DefaultCoarseStep     = 6 * time.Hour
	DefaultFineStep       = time.Minute
	DefaultMaxCoarseSteps = 5000
)

var eightPhaseNames = []string{
	"New Moon",
	"Waxing Crescent",
	"First Quarter",
	"Waxing Gibbous",
	"Full Moon",
	"Waning Gibbous",
	"Last Quarter",
	"Waning Crescent",
}

// Config is the explicit scan configuration shared by scanner, builder and labeler.
// ⭐ SSOT: 위상 탐색 파라미터 (전역 상수 없음)
type Config struct {
	RangeStart     time.Time
	RangeEnd       time.Time
	PhaseCount     int
	PhaseNames     []string
	CoarseStep     time.Duration
	FineStep       time.Duration
	MaxCoarseSteps int
	Refine         Refinement
}

// DefaultConfig returns a config for [start, end] with the standard 8 phases and steps
func DefaultConfig(start, end time.Time) Config {
	return Config{
		RangeStart:     start.UTC(),
		RangeEnd:       end.UTC(),
		PhaseCount:     DefaultPhaseCount,
		PhaseNames:     DefaultPhaseNames(DefaultPhaseCount),
		CoarseStep:     DefaultCoarseStep,
		FineStep:       DefaultFineStep,
		MaxCoarseSteps: DefaultMaxCoarseSteps,
		Refine:         RefineLinear,
	}
}

// DefaultPhaseNames returns the lunar names for 8 phases and "Phase k" otherwise
func DefaultPhaseNames(n int) []string {
	if n == len(eightPhaseNames) {
		return append([]string(nil), eightPhaseNames...)
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Phase %d", i)
	}
	return names
}

// Validate checks the config before any oracle call is made
func (c Config) Validate() error {
	if c.RangeStart.IsZero() || c.RangeEnd.IsZero() {
		return fmt.Errorf("%w: range_start and range_end are required", ErrInvalidConfig)
	}
	if !c.RangeStart.Before(c.RangeEnd) {
		return fmt.Errorf("%w: range_start %s must be before range_end %s",
			ErrInvalidConfig, c.RangeStart.Format(time.RFC3339), c.RangeEnd.Format(time.RFC3339))
	}
	if c.PhaseCount <= 1 {
		return fmt.Errorf("%w: phase_count must be > 1, got %d", ErrInvalidConfig, c.PhaseCount)
	}
	if len(c.PhaseNames) != 0 && len(c.PhaseNames) != c.PhaseCount {
		return fmt.Errorf("%w: %d phase names for %d phases", ErrInvalidConfig, len(c.PhaseNames), c.PhaseCount)
	}
	if c.CoarseStep <= 0 || c.FineStep <= 0 {
		return fmt.Errorf("%w: coarse and fine steps must be positive", ErrInvalidConfig)
	}
	if c.FineStep >= c.CoarseStep {
		return fmt.Errorf("%w: fine step %s must be smaller than coarse step %s", ErrInvalidConfig, c.FineStep, c.CoarseStep)
	}
	if c.MaxCoarseSteps <= 0 {
		return fmt.Errorf("%w: max_coarse_steps must be positive", ErrInvalidConfig)
	}
	switch c.Refine {
	case "", RefineLinear, RefineBisect:
	default:
		return fmt.Errorf("%w: unknown refinement %q", ErrInvalidConfig, c.Refine)
	}
	return nil
}

// PhaseName returns the display name of phase i
func (c Config) PhaseName(i int) string {
	if len(c.PhaseNames) == c.PhaseCount {
		return c.PhaseNames[i]
	}
	return fmt.Sprintf("Phase %d", i)
}

// SectorWidth returns the angular width of one phase in degrees
func (c Config) SectorWidth() float64 {
	return 360 / float64(c.PhaseCount)
}

// Index maps an angle in degrees to a phase index in [0, n)
func Index(angle float64, n int) int {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	return int(math.Floor(a/(360/float64(n)))) % n
}
