package ephemeris

import (
	"context"
	"fmt"
	"time"
)

// Linear is a synthetic oracle advancing at a constant rate:
//
//	angle(t) = Offset + DegreesPerDay * days(t - Epoch)   (mod 360)
//
// Boundary instants are predictable in closed form, see CrossingAt.
type Linear struct {
	Epoch         time.Time
	Offset        float64
	DegreesPerDay float64
}

// Angle implements contracts.AngleOracle
func (l Linear) Angle(_ context.Context, at time.Time) (float64, error) {
	days := at.Sub(l.Epoch).Hours() / 24
	return Normalize(l.Offset + l.DegreesPerDay*days), nil
}

// ID implements Identified
func (l Linear) ID() string {
	return fmt.Sprintf("linear:%s:%g:%g", l.Epoch.UTC().Format(time.RFC3339Nano), l.Offset, l.DegreesPerDay)
}

// CrossingAt returns the first instant >= Epoch at which the unwrapped angle
// reaches Offset + k*360 + deg. Used as the analytic reference in tests.
func (l Linear) CrossingAt(turns int, deg float64) time.Time {
	target := float64(turns)*360 + deg - l.Offset
	days := target / l.DegreesPerDay
	return l.Epoch.Add(time.Duration(days * 24 * float64(time.Hour)))
}
