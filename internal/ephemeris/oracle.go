// Package ephemeris provides angle oracles: pure functions from an instant
// to the Moon–Sun elongation in degrees, normalized to [0, 360).
package ephemeris

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/wonny/lunaris/internal/contracts"
)

// ErrOutsideEphemeris is returned for instants outside an oracle's valid range
var ErrOutsideEphemeris = errors.New("instant outside ephemeris range")

// Func adapts a plain function to contracts.AngleOracle
type Func func(at time.Time) float64

// Angle implements contracts.AngleOracle
func (f Func) Angle(_ context.Context, at time.Time) (float64, error) {
	return Normalize(f(at)), nil
}

var _ contracts.AngleOracle = Func(nil)

// Normalize maps any angle in degrees to [0, 360)
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -1e-15 + 360 rounds to 360
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Identified is implemented by oracles that can name their angle source.
// Two oracles with the same ID must return the same angles.
type Identified interface {
	ID() string
}

// Identity returns the oracle ID; ok=false for anonymous oracles (Func, test wrappers)
func Identity(oracle contracts.AngleOracle) (string, bool) {
	if id, ok := oracle.(Identified); ok && id.ID() != "" {
		return id.ID(), true
	}
	return "", false
}

// RangeChecker is implemented by oracles with a bounded valid range
type RangeChecker interface {
	ValidateRange(start, end time.Time) error
}

// ValidateRange checks [start, end] against the oracle's valid range, if it has one.
// Failure is a startup configuration error, not a per-call condition.
func ValidateRange(oracle contracts.AngleOracle, start, end time.Time) error {
	if rc, ok := oracle.(RangeChecker); ok {
		return rc.ValidateRange(start, end)
	}
	return nil
}
