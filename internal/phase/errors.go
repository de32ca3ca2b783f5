package phase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig wraps every Config validation failure
	ErrInvalidConfig = errors.New("invalid phase config")

	// ErrLoopDetected means the coarse step budget ran out before the target phase appeared
	ErrLoopDetected = errors.New("coarse step budget exhausted")

	// ErrNoProgress means a scan returned an instant not after the previous boundary
	ErrNoProgress = errors.New("boundary did not advance")

	// ErrInvalidTimeline is returned when a stored timeline breaks ordering or cycle rules
	ErrInvalidTimeline = errors.New("invalid phase timeline")
)

// ScanError carries the position of a fatal scan failure
type ScanError struct {
	At     time.Time
	Target int
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan for phase %d at %s: %v", e.Target, e.At.UTC().Format(time.RFC3339), e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
