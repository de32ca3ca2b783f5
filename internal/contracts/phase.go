package contracts

import "time"

// PhaseBoundary is the instant the elongation enters a phase sector
// ⭐ SSOT: 위상 경계 값 객체 (생성 후 불변)
type PhaseBoundary struct {
	Instant    time.Time `json:"instant_utc"`
	PhaseIndex int       `json:"phase_index"`
	PhaseName  string    `json:"phase_name"`
	Clamped    bool      `json:"clamped"` // search limit, not a true crossing
}

// PhaseTimelineSnapshot is the serializable form of a finished timeline
// (cache, persistence, API). Invariants are re-checked when it is loaded back.
type PhaseTimelineSnapshot struct {
	RangeStart time.Time       `json:"range_start"`
	RangeEnd   time.Time       `json:"range_end"`
	PhaseCount int             `json:"phase_count"`
	Boundaries []PhaseBoundary `json:"boundaries"`
}

// ClampedCount returns how many boundaries were reported at a search limit
func (s *PhaseTimelineSnapshot) ClampedCount() int {
	n := 0
	for _, b := range s.Boundaries {
		if b.Clamped {
			n++
		}
	}
	return n
}
