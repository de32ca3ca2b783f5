package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is a fixed calendar range used for secondary labeling.
// Half-open: a period covers [previous End, End). Zero End = open ended.
type Period struct {
	Name string    `json:"name"`
	End  time.Time `json:"end,omitempty"`
}

// Unbounded reports whether the period has no upper cutoff
func (p Period) Unbounded() bool {
	return p.End.IsZero()
}

// LabeledTick is the phase/period label of a single timestamp
type LabeledTick struct {
	Timestamp  time.Time `json:"timestamp"`
	PhaseIndex int       `json:"phase_index"`
	PhaseName  string    `json:"phase_name"`
	PeriodName string    `json:"period_name"`
	OutOfRange bool      `json:"out_of_range"` // clamped to the nearest boundary
}

// PriceTick is one OHLCV bar from the external price loader
type PriceTick struct {
	Timestamp time.Time       `json:"timestamp_utc"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// LabeledPrice is a price tick plus its labels
type LabeledPrice struct {
	PriceTick
	PhaseName  string `json:"phase_name"`
	PeriodName string `json:"period_name"`
	OutOfRange bool   `json:"out_of_range"`
}
