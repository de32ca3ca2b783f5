package studyconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/lunaris/internal/contracts"
	"github.com/wonny/lunaris/internal/phase"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = validator.New()

const dateLayout = "2006-01-02"

// Validate checks field rules and cross-field constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			msg := fe.Tag()
			if fe.Param() != "" {
				msg += "=" + fe.Param()
			}
			return ValidationError{fe.Namespace(), msg}
		}
		return err
	}

	// === Range ===
	start, err := ParseInstant(cfg.Range.Start)
	if err != nil {
		return ValidationError{"range.start", err.Error()}
	}
	end, err := ParseInstant(cfg.Range.End)
	if err != nil {
		return ValidationError{"range.end", err.Error()}
	}
	if !start.Before(end) {
		return ValidationError{"range", "start must be before end"}
	}

	// === Phases ===
	if len(cfg.Phases.Names) != 0 && len(cfg.Phases.Names) != cfg.Phases.Count {
		return ValidationError{"phases.names", fmt.Sprintf("expected %d names, got %d", cfg.Phases.Count, len(cfg.Phases.Names))}
	}

	// === Periods ===
	var prev time.Time
	for i, p := range cfg.Periods {
		field := fmt.Sprintf("periods[%d].until", i)
		if p.Until == "" {
			if i != len(cfg.Periods)-1 {
				return ValidationError{field, "only the last period may be open ended"}
			}
			continue
		}
		cutoff, err := ParseCutoff(p.Until)
		if err != nil {
			return ValidationError{field, err.Error()}
		}
		if i > 0 && !cutoff.After(prev) {
			return ValidationError{field, "cutoffs must be strictly increasing"}
		}
		prev = cutoff
	}

	return nil
}

// ParseInstant parses RFC3339 or YYYY-MM-DD (midnight UTC)
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// ParseCutoff returns the exclusive end of a period. A date-only cutoff
// includes the whole day, so its end is the next midnight UTC.
func ParseCutoff(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cutoff %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t.UTC().AddDate(0, 0, 1), nil
}

// PhaseConfig converts the study into the scanner configuration
func (c *Config) PhaseConfig() (phase.Config, error) {
	start, err := ParseInstant(c.Range.Start)
	if err != nil {
		return phase.Config{}, err
	}
	end, err := ParseInstant(c.Range.End)
	if err != nil {
		return phase.Config{}, err
	}

	names := c.Phases.Names
	if len(names) == 0 {
		names = phase.DefaultPhaseNames(c.Phases.Count)
	}

	cfg := phase.Config{
		RangeStart:     start,
		RangeEnd:       end,
		PhaseCount:     c.Phases.Count,
		PhaseNames:     append([]string(nil), names...),
		CoarseStep:     c.Scan.Coarse,
		FineStep:       c.Scan.Fine,
		MaxCoarseSteps: c.Scan.MaxCoarseSteps,
		Refine:         phase.Refinement(c.Scan.Refine),
	}
	return cfg, cfg.Validate()
}

// PeriodList converts period specs into half-open periods
func (c *Config) PeriodList() ([]contracts.Period, error) {
	periods := make([]contracts.Period, 0, len(c.Periods))
	for _, p := range c.Periods {
		period := contracts.Period{Name: p.Name}
		if p.Until != "" {
			end, err := ParseCutoff(p.Until)
			if err != nil {
				return nil, fmt.Errorf("period %q: %w", p.Name, err)
			}
			period.End = end
		}
		periods = append(periods, period)
	}
	return periods, nil
}
