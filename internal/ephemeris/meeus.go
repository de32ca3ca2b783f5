package ephemeris

import (
	"context"
	"fmt"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/deltat"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/solar"
)

// Elongation computes the geocentric Moon–Sun elongation (apparent moon
// longitude minus apparent sun longitude) with the Meeus algorithms
// (Astronomical Algorithms ch. 25 and 47). The solar series limits accuracy
// to about 0.01°, well under a minute of phase-boundary time.
// 0° = new moon, 180° = full moon.
type Elongation struct{}

var (
	elongationMin = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	elongationMax = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ID implements Identified
func (Elongation) ID() string {
	return "meeus"
}

// Angle implements contracts.AngleOracle
func (Elongation) Angle(_ context.Context, at time.Time) (float64, error) {
	if at.Before(elongationMin) || !at.Before(elongationMax) {
		return 0, fmt.Errorf("elongation at %s: %w", at.UTC().Format(time.RFC3339), ErrOutsideEphemeris)
	}

	jde := ephemerisDay(at)

	moon, _, _ := moonposition.Position(jde)
	dPsi, _ := nutation.Nutation(jde) // moonposition is referred to the mean equinox
	sun := solar.ApparentLongitude(base.J2000Century(jde))

	return Normalize((moon + dPsi - sun).Deg()), nil
}

// ValidateRange implements RangeChecker
func (Elongation) ValidateRange(start, end time.Time) error {
	if start.Before(elongationMin) || !end.Before(elongationMax) {
		return fmt.Errorf("range %s..%s not within %s..%s: %w",
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
			elongationMin.Format("2006-01-02"), elongationMax.Format("2006-01-02"),
			ErrOutsideEphemeris)
	}
	return nil
}

// ephemerisDay converts a UTC instant to a Julian Ephemeris Day (TT)
func ephemerisDay(at time.Time) float64 {
	at = at.UTC()
	jd := julian.TimeToJD(at)

	// 1900-1999 from the observed table, afterwards the 2000-2100 polynomial
	y := float64(at.Year()) + (float64(at.YearDay())-0.5)/365.25
	var dt float64
	if y < 2000 {
		dt = deltat.Interp10A(jd).Sec()
	} else {
		dt = deltat.PolyAfter2000(y).Sec()
	}

	return jd + dt/86400
}
