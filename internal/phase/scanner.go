package phase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/pkg/logger"
)

// OutcomeKind tags the result of a single boundary scan
type OutcomeKind int

const (
	// Found is a true crossing located to fine-step precision
	Found OutcomeKind = iota
	// Clamped is an instant reported at a search limit instead of a crossing
	Clamped
	// LoopDetected means the coarse step budget ran out
	LoopDetected
)

func (k OutcomeKind) String() string {
	switch k {
	case Found:
		return "found"
	case Clamped:
		return "clamped"
	case LoopDetected:
		return "loop_detected"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// ClampReason tells which search limit produced a Clamped outcome
type ClampReason int

const (
	ClampNone ClampReason = iota
	ClampRangeEnd
	ClampRangeStart
)

func (r ClampReason) String() string {
	switch r {
	case ClampNone:
		return "none"
	case ClampRangeEnd:
		return "range_end"
	case ClampRangeStart:
		return "range_start"
	default:
		return fmt.Sprintf("ClampReason(%d)", int(r))
	}
}

// Outcome is the tagged result of Scanner.Next
type Outcome struct {
	Kind    OutcomeKind
	Instant time.Time
	Phase   int // target phase of the scan
	Reason  ClampReason
	Samples int // oracle calls spent on this scan
}

// Scanner finds the next instant at which the elongation enters the following phase.
// Coarse forward sampling brackets the crossing, fine backward sampling pins it.
type Scanner struct {
	cfg    Config
	oracle contracts.AngleOracle
	log    *logger.Logger
}

// NewScanner validates cfg and creates a Scanner
func NewScanner(cfg Config, oracle contracts.AngleOracle, log *logger.Logger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, fmt.Errorf("%w: oracle is required", ErrInvalidConfig)
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Refine == "" {
		cfg.Refine = RefineLinear
	}
	return &Scanner{cfg: cfg, oracle: oracle, log: log}, nil
}

// Config returns the scanner's configuration
func (s *Scanner) Config() Config {
	return s.cfg
}

// PhaseAt samples the oracle once and returns the active phase at t
func (s *Scanner) PhaseAt(ctx context.Context, t time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	angle, err := s.oracle.Angle(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("oracle at %s: %w", t.UTC().Format(time.RFC3339), err)
	}
	return Index(angle, s.cfg.PhaseCount), nil
}

// Next scans forward from `from` for the first instant whose phase is current+1 (mod N).
// Oracle failures and cancellation are returned as errors; search limits are
// reported through Outcome.Kind.
func (s *Scanner) Next(ctx context.Context, from time.Time, current int) (Outcome, error) {
	target := (current + 1) % s.cfg.PhaseCount
	out := Outcome{Phase: target}

	var (
		prev    time.Time
		hasPrev bool
	)

	t := from
	for step := 0; ; step++ {
		if step >= s.cfg.MaxCoarseSteps {
			out.Kind = LoopDetected
			out.Instant = prev
			return out, nil
		}

		if t.After(s.cfg.RangeEnd) {
			t = s.cfg.RangeEnd
		}

		p, err := s.PhaseAt(ctx, t)
		out.Samples++
		if err != nil {
			return out, err
		}

		if p == target {
			if s.cfg.Refine == RefineBisect && hasPrev {
				return s.bisect(ctx, out, prev, t)
			}
			return s.stepBack(ctx, out, t)
		}

		if !t.Before(s.cfg.RangeEnd) {
			out.Kind = Clamped
			out.Reason = ClampRangeEnd
			out.Instant = s.cfg.RangeEnd
			return out, nil
		}

		prev, hasPrev = t, true
		t = t.Add(s.cfg.CoarseStep)
	}
}

// stepBack walks backward from the coarse hit until the phase changes.
// The crossing is the earliest fine-grid instant still in the target phase.
func (s *Scanner) stepBack(ctx context.Context, out Outcome, hit time.Time) (Outcome, error) {
	f := hit
	for {
		back := f.Add(-s.cfg.FineStep)
		if back.Before(s.cfg.RangeStart) {
			return s.clampAtStart(out, hit), nil
		}

		p, err := s.PhaseAt(ctx, back)
		out.Samples++
		if err != nil {
			return out, err
		}

		if p != out.Phase {
			out.Kind = Found
			out.Instant = f
			return out, nil
		}
		f = back
	}
}

// bisect searches the fine grid hit, hit-fine, ..., down to lo (a known miss).
// Assumes the phase is monotonic between lo and hit; then it returns the same
// instant as stepBack with O(log n) oracle calls.
func (s *Scanner) bisect(ctx context.Context, out Outcome, lo, hit time.Time) (Outcome, error) {
	fine := s.cfg.FineStep
	m := int(hit.Sub(lo) / fine)
	grid := func(j int) time.Time { return hit.Add(-time.Duration(j) * fine) }

	var sampleErr error
	i := sort.Search(m, func(i int) bool {
		if sampleErr != nil {
			return true
		}
		p, err := s.PhaseAt(ctx, grid(i+1))
		out.Samples++
		if err != nil {
			sampleErr = err
			return true
		}
		return p != out.Phase
	})
	if sampleErr != nil {
		return out, sampleErr
	}

	// i+1 is the first miss; i == m means every grid point down to grid(m) hit
	// and the miss is grid(m+1), which lies before lo.
	if i == m && grid(m+1).Before(s.cfg.RangeStart) {
		return s.clampAtStart(out, hit), nil
	}

	out.Kind = Found
	out.Instant = grid(i)
	return out, nil
}

func (s *Scanner) clampAtStart(out Outcome, hit time.Time) Outcome {
	s.log.WithFields(map[string]interface{}{
		"instant": hit.UTC().Format(time.RFC3339),
		"phase":   s.cfg.PhaseName(out.Phase),
	}).Warn("fine search reached range_start, boundary clamped")

	out.Kind = Clamped
	out.Reason = ClampRangeStart
	out.Instant = hit
	return out
}
