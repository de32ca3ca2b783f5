package contracts

import (
	"context"
	"time"
)

// AngleOracle returns the elongation angle in [0, 360) for an instant.
// Implementations must be deterministic for a given instant.
// ⭐ SSOT: 각도 오라클 인터페이스
type AngleOracle interface {
	Angle(ctx context.Context, at time.Time) (float64, error)
}

// TimelineRepository persists finished timelines keyed by study hash + oracle ID
type TimelineRepository interface {
	SaveTimeline(ctx context.Context, key string, snapshot *PhaseTimelineSnapshot) error
	LoadTimeline(ctx context.Context, key string) (*PhaseTimelineSnapshot, error)
}

// LabeledPriceRepository persists labeled price ticks
type LabeledPriceRepository interface {
	SaveLabeledPrices(ctx context.Context, key string, prices []LabeledPrice) error
}
