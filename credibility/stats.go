package credibility

import (
	"sort"
	"time"
)

// Experience distribution buckets.
const (
	Bucket0To5   = "0-5"
	Bucket5To10  = "5-10"
	Bucket10To15 = "10-15"
	Bucket15Plus = "15+"
)

// Education distribution buckets.
const (
	EducationBachelor = "bachelor"
	EducationMaster   = "master"
	EducationPhD      = "phd"
	EducationOther    = "other"
)

// DefaultLevelThresholds maps credibility levels to the minimum percentile
// that earns them.
var DefaultLevelThresholds = map[int]float64{
	5: 95,
	4: 80,
	3: 50,
	2: 20,
	1: 0,
}

// Stats is the corpus-wide distribution used to place a profile's
// experience relative to every other profile.
type Stats struct {
	TotalProfiles          int            `json:"total_profiles"`
	MaxYears               float64        `json:"max_years"`
	ExperienceDistribution map[string]int `json:"experience_distribution"`
	EducationDistribution  map[string]int `json:"education_distribution"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// NewStats returns empty statistics with every bucket present.
func NewStats() *Stats {
	return &Stats{
		ExperienceDistribution: map[string]int{
			Bucket0To5:   0,
			Bucket5To10:  0,
			Bucket10To15: 0,
			Bucket15Plus: 0,
		},
		EducationDistribution: map[string]int{
			EducationBachelor: 0,
			EducationMaster:   0,
			EducationPhD:      0,
			EducationOther:    0,
		},
	}
}

// BuildStats computes statistics over the given profiles. currentYear
// resolves open-ended experience spans.
func BuildStats(profiles []Profile, currentYear int, now time.Time) *Stats {
	s := NewStats()
	s.TotalProfiles = len(profiles)
	s.UpdatedAt = now

	for _, p := range profiles {
		years := p.YearsOfExperience(currentYear)
		if years > s.MaxYears {
			s.MaxYears = years
		}
		s.ExperienceDistribution[experienceBucket(years)]++

		if category := profileEducation(p); category != "" {
			s.EducationDistribution[category]++
		}
	}
	return s
}

func experienceBucket(years float64) string {
	switch {
	case years < 5:
		return Bucket0To5
	case years < 10:
		return Bucket5To10
	case years < 15:
		return Bucket10To15
	default:
		return Bucket15Plus
	}
}

func profileEducation(p Profile) string {
	if p.EducationLevel != "" {
		return DegreeCategory(p.EducationLevel)
	}
	return DegreeCategory(p.LatestDegree)
}

// Percentile places years of experience within the distribution using
// linear interpolation inside each bucket. With no profiles it returns 50.
func (s *Stats) Percentile(years float64) float64 {
	if s == nil || s.TotalProfiles == 0 {
		return 50.0
	}

	d := s.ExperienceDistribution
	low, mid, high, top := float64(d[Bucket0To5]), float64(d[Bucket5To10]), float64(d[Bucket10To15]), float64(d[Bucket15Plus])

	var below float64
	switch {
	case years < 5:
		below = low * years / 5.0
	case years < 10:
		below = low + mid*(years-5)/5.0
	case years < 15:
		below = low + mid + high*(years-10)/5.0
	case s.MaxYears <= 15:
		below = low + mid + high
	default:
		below = low + mid + high + top*min(1.0, (years-15)/(s.MaxYears-15))
	}

	if below < 0 {
		below = 0
	}
	return below / float64(s.TotalProfiles) * 100.0
}

// Level maps a percentile onto a credibility level using the thresholds,
// or DefaultLevelThresholds when thresholds is nil. The lowest level is 1.
func Level(percentile float64, thresholds map[int]float64) int {
	if thresholds == nil {
		thresholds = DefaultLevelThresholds
	}
	levels := make([]int, 0, len(thresholds))
	for level := range thresholds {
		levels = append(levels, level)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))

	for _, level := range levels {
		if percentile >= thresholds[level] {
			return level
		}
	}
	return 1
}

// Placement is a profile's position in the corpus.
type Placement struct {
	YearsExperience float64
	Percentile      float64
	Level           int
}

// Place computes the percentile and level for a profile.
func (s *Stats) Place(p Profile, currentYear int) Placement {
	years := p.YearsOfExperience(currentYear)
	pct := s.Percentile(years)
	return Placement{
		YearsExperience: years,
		Percentile:      pct,
		Level:           Level(pct, nil),
	}
}
