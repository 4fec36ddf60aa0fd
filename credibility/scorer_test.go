package credibility

import (
	"errors"
	"math"
	"testing"

	"github.com/poiesic/expertfinder/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMetric struct {
	name   string
	weight float64
	score  func(Profile) (float64, error)
}

func (s *stubMetric) Name() string                      { return s.name }
func (s *stubMetric) Weight() float64                   { return s.weight }
func (s *stubMetric) Score(p Profile) (float64, error) { return s.score(p) }

func TestScorerTotal(t *testing.T) {
	scorer, err := NewScorer([]Metric{
		NewExperienceMetric(1.5, WithClock(fixedClock())),
		NewEducationMetric(1.2),
	})
	require.NoError(t, err)

	result := scorer.Score(Profile{TotalYearsExperience: 12, EducationLevel: "PhD"})

	assert.InDelta(t, 6.6, result.Total, 1e-9)
	assert.Equal(t, map[string]float64{"experience": 2.0, "education": 3.0}, result.PerMetric)
	assert.Empty(t, result.Failed)
}

func TestScorerIsolatesFailures(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
	}{
		{
			name: "error",
			metric: &stubMetric{name: "broken", weight: 1, score: func(Profile) (float64, error) {
				return 0, errors.New("boom")
			}},
		},
		{
			name: "panic",
			metric: &stubMetric{name: "broken", weight: 1, score: func(Profile) (float64, error) {
				panic("nil map")
			}},
		},
		{
			name: "out of range",
			metric: &stubMetric{name: "broken", weight: 1, score: func(Profile) (float64, error) {
				return 7, nil
			}},
		},
		{
			name: "NaN",
			metric: &stubMetric{name: "broken", weight: 1, score: func(Profile) (float64, error) {
				return math.NaN(), nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer, err := NewScorer([]Metric{tt.metric, NewEducationMetric(2)})
			require.NoError(t, err)

			result := scorer.Score(Profile{EducationLevel: "Masters"})
			assert.Equal(t, 4.0, result.Total)
			assert.Equal(t, 0.0, result.PerMetric["broken"])
			assert.Equal(t, []string{"broken"}, result.Failed)
		})
	}
}

func TestNewScorerValidation(t *testing.T) {
	tests := []struct {
		name    string
		metrics []Metric
		wantErr error
	}{
		{"empty", nil, ErrNoMetrics},
		{"nil metric", []Metric{nil}, core.ErrValidation},
		{"zero weight", []Metric{NewEducationMetric(0)}, ErrInvalidWeight},
		{"negative weight", []Metric{NewCitationMetric(-1)}, ErrInvalidWeight},
		{"duplicate", []Metric{NewEducationMetric(1), NewEducationMetric(2)}, ErrDuplicateMetric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScorer(tt.metrics)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestScorerDeterministic(t *testing.T) {
	scorer, err := NewScorer(DefaultMetrics(DefaultWeights(), WithClock(fixedClock())))
	require.NoError(t, err)

	p := Profile{TotalYearsExperience: 9, LatestDegree: "BS", Citations: 250}
	first := scorer.Score(p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scorer.Score(p))
	}
	assert.Len(t, scorer.Metrics(), 4)
}

func TestDefaultMetricsSkipsZeroWeights(t *testing.T) {
	metrics := DefaultMetrics(Weights{Experience: 1})
	require.Len(t, metrics, 1)
	assert.Equal(t, "experience", metrics[0].Name())
}
