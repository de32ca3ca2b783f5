package studyconfig

import "time"

// Config is the full definition of one lunar-phase study
type Config struct {
	Meta    Meta         `yaml:"meta" json:"meta"`
	Range   Range        `yaml:"range" json:"range"`
	Phases  Phases       `yaml:"phases" json:"phases"`
	Scan    Scan         `yaml:"scan" json:"scan"`
	Periods []PeriodSpec `yaml:"periods" json:"periods" validate:"dive"`
}

// Meta 메타 정보
type Meta struct {
	StudyID string `yaml:"study_id" json:"study_id" default:"lunar_study" validate:"required"`
	Version string `yaml:"version" json:"version" default:"1"`
}

// Range is the analysis window. Accepts RFC3339 or YYYY-MM-DD (midnight UTC).
type Range struct {
	Start string `yaml:"start" json:"start" default:"2019-01-01" validate:"required"`
	End   string `yaml:"end" json:"end" default:"2024-12-31" validate:"required"`
}

// Phases defines the angular sectors
type Phases struct {
	Count int      `yaml:"count" json:"count" default:"8" validate:"gt=1,lte=360"`
	Names []string `yaml:"names" json:"names" validate:"omitempty,dive,required"`
}

// Scan holds the boundary search parameters
type Scan struct {
	Coarse         time.Duration `yaml:"coarse" json:"coarse" default:"6h" validate:"gt=0"`
	Fine           time.Duration `yaml:"fine" json:"fine" default:"1m" validate:"gt=0,ltfield=Coarse"`
	MaxCoarseSteps int           `yaml:"max_coarse_steps" json:"max_coarse_steps" default:"5000" validate:"gt=0"`
	Refine         string        `yaml:"refine" json:"refine" default:"linear" validate:"oneof=linear bisect"`
}

// PeriodSpec is one calendar period. Until is inclusive: a date-only value
// covers that whole day (UTC), an RFC3339 value is an exact exclusive end.
// Empty Until = open ended (last period only).
type PeriodSpec struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Until string `yaml:"until" json:"until,omitempty"`
}

// defaultPeriods 기본 기간 구분 (팬데믹 전/중/후)
func defaultPeriods() []PeriodSpec {
	return []PeriodSpec{
		{Name: "pre-pandemic", Until: "2020-03-01"},
		{Name: "pandemic", Until: "2021-12-31"},
		{Name: "post-pandemic"},
	}
}
