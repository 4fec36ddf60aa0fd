package credibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildStats(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	profiles := []Profile{
		{TotalYearsExperience: 2, EducationLevel: "Bachelors"},
		{TotalYearsExperience: 7, LatestDegree: "MS"},
		{TotalYearsExperience: 12, EducationLevel: "PhD"},
		{TotalYearsExperience: 20, EducationLevel: "Other"},
		{Experiences: []Experience{{StartYear: "2021"}}},
	}

	s := BuildStats(profiles, 2025, now)

	assert.Equal(t, 5, s.TotalProfiles)
	assert.Equal(t, 20.0, s.MaxYears)
	assert.Equal(t, now, s.UpdatedAt)
	assert.Equal(t, map[string]int{"0-5": 2, "5-10": 1, "10-15": 1, "15+": 1}, s.ExperienceDistribution)
	assert.Equal(t, map[string]int{"bachelor": 1, "master": 1, "phd": 1, "other": 1}, s.EducationDistribution)
}

func TestPercentile(t *testing.T) {
	s := NewStats()
	s.TotalProfiles = 10
	s.MaxYears = 25
	s.ExperienceDistribution = map[string]int{"0-5": 2, "5-10": 4, "10-15": 2, "15+": 2}

	tests := []struct {
		years float64
		want  float64
	}{
		{0, 0},
		{2.5, 10},
		{5, 20},
		{7.5, 40},
		{10, 60},
		{12.5, 70},
		{15, 80},
		{20, 90},
		{25, 100},
		{40, 100},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, s.Percentile(tt.years), 1e-9, "years=%v", tt.years)
	}
}

func TestPercentileEdgeCases(t *testing.T) {
	assert.Equal(t, 50.0, NewStats().Percentile(10))

	var nilStats *Stats
	assert.Equal(t, 50.0, nilStats.Percentile(10))

	s := NewStats()
	s.TotalProfiles = 4
	s.MaxYears = 15
	s.ExperienceDistribution = map[string]int{"0-5": 1, "5-10": 1, "10-15": 1, "15+": 1}
	assert.InDelta(t, 75.0, s.Percentile(30), 1e-9)
}

func TestLevel(t *testing.T) {
	tests := []struct {
		percentile float64
		want       int
	}{
		{99, 5}, {95, 5}, {94.9, 4}, {80, 4}, {60, 3}, {50, 3}, {49, 2}, {20, 2}, {5, 1}, {0, 1}, {-1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.percentile, nil), "percentile=%v", tt.percentile)
	}

	custom := map[int]float64{2: 90, 1: 10}
	assert.Equal(t, 2, Level(91, custom))
	assert.Equal(t, 1, Level(5, custom))
}

func TestPlace(t *testing.T) {
	s := BuildStats([]Profile{
		{TotalYearsExperience: 1},
		{TotalYearsExperience: 6},
		{TotalYearsExperience: 11},
		{TotalYearsExperience: 16},
	}, 2025, time.Time{})

	got := s.Place(Profile{TotalYearsExperience: 16}, 2025)
	assert.Equal(t, 16.0, got.YearsExperience)
	assert.InDelta(t, 100.0, got.Percentile, 1e-9)
	assert.Equal(t, 5, got.Level)
}
