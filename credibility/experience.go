package credibility

import (
	"github.com/juju/clock"
)

// ExperienceMetric scores total years of professional experience.
type ExperienceMetric struct {
	weight float64
	clock  clock.Clock
}

var _ Metric = (*ExperienceMetric)(nil)

// ExperienceOption configures an ExperienceMetric.
type ExperienceOption func(*ExperienceMetric)

// WithClock sets the clock used to resolve open-ended positions.
// Default is clock.WallClock.
func WithClock(c clock.Clock) ExperienceOption {
	return func(m *ExperienceMetric) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewExperienceMetric creates an experience metric with the given weight.
func NewExperienceMetric(weight float64, opts ...ExperienceOption) *ExperienceMetric {
	m := &ExperienceMetric{
		weight: weight,
		clock:  clock.WallClock,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "experience".
func (m *ExperienceMetric) Name() string { return "experience" }

// Weight returns the configured weight.
func (m *ExperienceMetric) Weight() float64 { return m.weight }

// Score applies fixed thresholds to the profile's total years:
// 15+ scores 3, 10+ scores 2, 5+ scores 1.
func (m *ExperienceMetric) Score(profile Profile) (float64, error) {
	years := profile.YearsOfExperience(m.clock.Now().Year())
	return ExperienceScore(years), nil
}

// ExperienceScore maps years of experience onto the metric scale.
func ExperienceScore(years float64) float64 {
	switch {
	case years >= 15:
		return 3.0
	case years >= 10:
		return 2.0
	case years >= 5:
		return 1.0
	default:
		return 0.0
	}
}
