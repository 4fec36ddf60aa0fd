package credibility

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/poiesic/expertfinder/core"
)

// CredibilityResult is the aggregate score of one profile.
type CredibilityResult struct {
	// Total is the weighted sum of metric scores.
	Total float64

	// PerMetric maps metric names to their raw, unweighted scores.
	PerMetric map[string]float64

	// Failed lists the metrics that could not score the profile.
	Failed []string
}

// Scorer aggregates a weighted set of metrics.
// A Scorer is immutable after construction and safe for concurrent use.
type Scorer struct {
	metrics []Metric
	logger  *slog.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ScorerOption {
	return func(s *Scorer) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewScorer creates a scorer from an ordered set of metrics.
func NewScorer(metrics []Metric, opts ...ScorerOption) (*Scorer, error) {
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrNoMetrics)
	}

	seen := make(map[string]bool, len(metrics))
	for i, m := range metrics {
		if m == nil {
			return nil, fmt.Errorf("%w: metric %d is nil", core.ErrValidation, i)
		}
		if !(m.Weight() > 0) {
			return nil, fmt.Errorf("%w: %w: %s=%v", core.ErrValidation, ErrInvalidWeight, m.Name(), m.Weight())
		}
		if seen[m.Name()] {
			return nil, fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrDuplicateMetric, m.Name())
		}
		seen[m.Name()] = true
	}

	s := &Scorer{
		metrics: append([]Metric(nil), metrics...),
		logger:  slog.Default().With("component", "credibility-scorer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Metrics returns the scorer's metrics in evaluation order.
func (s *Scorer) Metrics() []Metric {
	return append([]Metric(nil), s.metrics...)
}

// Score computes the weighted sum of every metric for the profile.
// A failing metric contributes 0 and is listed in Failed; the remaining
// metrics still run.
func (s *Scorer) Score(profile Profile) CredibilityResult {
	result := CredibilityResult{
		PerMetric: make(map[string]float64, len(s.metrics)),
	}

	for _, m := range s.metrics {
		score, err := safeScore(m, profile)
		if err != nil {
			s.logger.Warn("metric failed, scoring 0",
				"metric", m.Name(),
				"err", fmt.Errorf("%w: %w", core.ErrMetricFailure, err))
			result.PerMetric[m.Name()] = 0
			result.Failed = append(result.Failed, m.Name())
			continue
		}
		result.PerMetric[m.Name()] = score
		result.Total += score * m.Weight()
	}

	return result
}

// safeScore runs one metric, converting panics and out-of-range results
// into errors.
func safeScore(m Metric, profile Profile) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			score, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()

	score, err = m.Score(profile)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return 0, fmt.Errorf("%w: %v", ErrScoreOutOfRange, score)
	}
	return score, nil
}

// Weights configures the default metric set.
type Weights struct {
	Experience   float64
	Education    float64
	Citations    float64
	Affiliation  float64
	Institutions []string
}

// DefaultWeights matches the default calculator: experience and education
// at 1.0, citations and affiliation at 0.5.
func DefaultWeights() Weights {
	return Weights{
		Experience:  1.0,
		Education:   1.0,
		Citations:   0.5,
		Affiliation: 0.5,
	}
}

// DefaultMetrics builds the standard metric set. Metrics with a zero weight
// are left out.
func DefaultMetrics(w Weights, opts ...ExperienceOption) []Metric {
	var metrics []Metric
	if w.Experience > 0 {
		metrics = append(metrics, NewExperienceMetric(w.Experience, opts...))
	}
	if w.Education > 0 {
		metrics = append(metrics, NewEducationMetric(w.Education))
	}
	if w.Citations > 0 {
		metrics = append(metrics, NewCitationMetric(w.Citations))
	}
	if w.Affiliation > 0 {
		metrics = append(metrics, NewAffiliationMetric(w.Affiliation, w.Institutions...))
	}
	return metrics
}
