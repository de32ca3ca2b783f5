package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/pkg/logger"
)

// Timeline is an ordered, read-only sequence of phase boundaries covering
// [RangeStart, RangeEnd]. The first boundary sits at RangeStart.
type Timeline struct {
	rangeStart time.Time
	rangeEnd   time.Time
	phaseCount int
	boundaries []contracts.PhaseBoundary
}

// RangeStart returns the first covered instant
func (t *Timeline) RangeStart() time.Time { return t.rangeStart }

// RangeEnd returns the last covered instant
func (t *Timeline) RangeEnd() time.Time { return t.rangeEnd }

// PhaseCount returns N
func (t *Timeline) PhaseCount() int { return t.phaseCount }

// Len returns the number of boundaries
func (t *Timeline) Len() int { return len(t.boundaries) }

// At returns boundary i
func (t *Timeline) At(i int) contracts.PhaseBoundary { return t.boundaries[i] }

// Boundaries returns a copy of all boundaries
func (t *Timeline) Boundaries() []contracts.PhaseBoundary {
	return append([]contracts.PhaseBoundary(nil), t.boundaries...)
}

// Snapshot returns the serializable form of the timeline
func (t *Timeline) Snapshot() *contracts.PhaseTimelineSnapshot {
	return &contracts.PhaseTimelineSnapshot{
		RangeStart: t.rangeStart,
		RangeEnd:   t.rangeEnd,
		PhaseCount: t.phaseCount,
		Boundaries: t.Boundaries(),
	}
}

// FromSnapshot restores a timeline from cache or storage, re-checking its invariants
func FromSnapshot(s *contracts.PhaseTimelineSnapshot) (*Timeline, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidTimeline)
	}
	if s.PhaseCount <= 1 {
		return nil, fmt.Errorf("%w: phase_count %d", ErrInvalidTimeline, s.PhaseCount)
	}
	if !s.RangeStart.Before(s.RangeEnd) {
		return nil, fmt.Errorf("%w: empty range", ErrInvalidTimeline)
	}
	if len(s.Boundaries) == 0 {
		return nil, fmt.Errorf("%w: no boundaries", ErrInvalidTimeline)
	}
	if !s.Boundaries[0].Instant.Equal(s.RangeStart) {
		return nil, fmt.Errorf("%w: first boundary %s is not range_start %s", ErrInvalidTimeline,
			s.Boundaries[0].Instant.Format(time.RFC3339), s.RangeStart.Format(time.RFC3339))
	}

	boundaries := make([]contracts.PhaseBoundary, len(s.Boundaries))
	for i, b := range s.Boundaries {
		if b.PhaseIndex < 0 || b.PhaseIndex >= s.PhaseCount {
			return nil, fmt.Errorf("%w: boundary %d phase index %d", ErrInvalidTimeline, i, b.PhaseIndex)
		}
		if i > 0 {
			prev := s.Boundaries[i-1]
			if !b.Instant.After(prev.Instant) {
				return nil, fmt.Errorf("%w: boundary %d not after boundary %d", ErrInvalidTimeline, i, i-1)
			}
			if b.PhaseIndex != (prev.PhaseIndex+1)%s.PhaseCount {
				return nil, fmt.Errorf("%w: boundary %d phase %d does not follow %d", ErrInvalidTimeline, i, b.PhaseIndex, prev.PhaseIndex)
			}
		}
		if !b.Instant.Before(s.RangeEnd) {
			return nil, fmt.Errorf("%w: boundary %d at or after range_end", ErrInvalidTimeline, i)
		}
		b.Instant = b.Instant.UTC()
		boundaries[i] = b
	}

	return &Timeline{
		rangeStart: s.RangeStart.UTC(),
		rangeEnd:   s.RangeEnd.UTC(),
		phaseCount: s.PhaseCount,
		boundaries: boundaries,
	}, nil
}

// Builder assembles a Timeline by repeatedly scanning for the next boundary
type Builder struct {
	scanner *Scanner
	log     *logger.Logger
}

// NewBuilder creates a timeline builder
func NewBuilder(cfg Config, oracle contracts.AngleOracle, log *logger.Logger) (*Builder, error) {
	if log == nil {
		log = logger.Nop()
	}
	scanner, err := NewScanner(cfg, oracle, log)
	if err != nil {
		return nil, err
	}
	return &Builder{scanner: scanner, log: log}, nil
}

// Build scans the whole range. On any fatal error no partial timeline is returned.
// ⭐ SSOT: 위상 경계 타임라인 생성
func (b *Builder) Build(ctx context.Context) (*Timeline, error) {
	cfg := b.scanner.Config()
	start := cfg.RangeStart.UTC()
	end := cfg.RangeEnd.UTC()

	current, err := b.scanner.PhaseAt(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("initial phase: %w", err)
	}

	boundaries := []contracts.PhaseBoundary{{
		Instant:    start,
		PhaseIndex: current,
		PhaseName:  cfg.PhaseName(current),
	}}
	b.logBoundary(boundaries[0])

	cursor := start
	samples := 1
	for {
		out, err := b.scanner.Next(ctx, cursor, current)
		samples += out.Samples
		if err != nil {
			return nil, fmt.Errorf("scan after %s: %w", cursor.Format(time.RFC3339), err)
		}

		if out.Kind == LoopDetected {
			b.log.WithFields(map[string]interface{}{
				"cursor":  cursor.Format(time.RFC3339),
				"target":  cfg.PhaseName(out.Phase),
				"samples": out.Samples,
			}).Error("coarse step budget exhausted")
			return nil, &ScanError{At: out.Instant, Target: out.Phase, Err: ErrLoopDetected}
		}

		if !out.Instant.Before(end) {
			break
		}

		if !out.Instant.After(cursor) {
			return nil, &ScanError{At: out.Instant, Target: out.Phase, Err: ErrNoProgress}
		}

		boundary := contracts.PhaseBoundary{
			Instant:    out.Instant.UTC(),
			PhaseIndex: out.Phase,
			PhaseName:  cfg.PhaseName(out.Phase),
			Clamped:    out.Kind == Clamped,
		}
		boundaries = append(boundaries, boundary)
		b.logBoundary(boundary)

		cursor = out.Instant
		current = out.Phase
	}

	b.log.WithFields(map[string]interface{}{
		"boundaries": len(boundaries),
		"samples":    samples,
	}).Info("phase timeline built")

	return &Timeline{
		rangeStart: start,
		rangeEnd:   end,
		phaseCount: cfg.PhaseCount,
		boundaries: boundaries,
	}, nil
}

func (b *Builder) logBoundary(boundary contracts.PhaseBoundary) {
	l := b.log.WithFields(map[string]interface{}{
		"instant": boundary.Instant.Format(time.RFC3339),
		"phase":   boundary.PhaseName,
	})
	if boundary.Clamped {
		l.Warn("phase started (clamped)")
		return
	}
	l.Info("phase started")
}
