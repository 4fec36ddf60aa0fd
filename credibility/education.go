package credibility

import (
	"strings"
	"unicode"
)

// EducationMetric scores the highest academic degree.
type EducationMetric struct {
	weight float64
}

var _ Metric = (*EducationMetric)(nil)

// NewEducationMetric creates an education metric with the given weight.
func NewEducationMetric(weight float64) *EducationMetric {
	return &EducationMetric{weight: weight}
}

// Name returns "education".
func (m *EducationMetric) Name() string { return "education" }

// Weight returns the configured weight.
func (m *EducationMetric) Weight() float64 { return m.weight }

// Score uses the first available of education level, latest degree, or the
// best degree across the education list. The first present field wins.
func (m *EducationMetric) Score(profile Profile) (float64, error) {
	if strings.TrimSpace(profile.EducationLevel) != "" {
		return DegreeScore(profile.EducationLevel), nil
	}
	if strings.TrimSpace(profile.LatestDegree) != "" {
		return DegreeScore(profile.LatestDegree), nil
	}

	var best float64
	for _, edu := range profile.Educations {
		if score := DegreeScore(edu.Degree); score > best {
			best = score
		}
	}
	return best, nil
}

// Substring terms, checked against the lowercased degree.
var (
	doctorateTerms = []string{"phd", "ph.d", "doctor"}
	masterTerms    = []string{"master"}
	bachelorTerms  = []string{"bachelor"}
)

// Whole-token abbreviations. Matched as tokens since "ba" occurs in "mba"
// and "ms" in many words.
var (
	masterTokens   = []string{"ms", "m.s", "m.s.", "msc", "mba", "ma", "m.a."}
	bachelorTokens = []string{"bs", "b.s", "b.s.", "ba", "b.a", "b.a.", "bsc", "b.sc"}
)

// DegreeScore classifies a degree string: doctorate 3, master 2,
// bachelor 1, anything else 0.
func DegreeScore(degree string) float64 {
	d := strings.ToLower(strings.TrimSpace(degree))
	if d == "" {
		return 0.0
	}

	switch {
	case containsAny(d, doctorateTerms):
		return 3.0
	case containsAny(d, masterTerms):
		return 2.0
	case containsAny(d, bachelorTerms):
		return 1.0
	}

	tokens := strings.FieldsFunc(d, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '(' || r == ')' || r == '/' || r == '-'
	})
	for _, tok := range tokens {
		if matchesToken(tok, masterTokens) {
			return 2.0
		}
	}
	for _, tok := range tokens {
		if matchesToken(tok, bachelorTokens) {
			return 1.0
		}
	}
	return 0.0
}

// DegreeCategory buckets a degree into phd, master, bachelor or other.
// Empty input yields "".
func DegreeCategory(degree string) string {
	if strings.TrimSpace(degree) == "" {
		return ""
	}
	switch DegreeScore(degree) {
	case 3.0:
		return "phd"
	case 2.0:
		return "master"
	case 1.0:
		return "bachelor"
	default:
		return "other"
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func matchesToken(tok string, tokens []string) bool {
	for _, t := range tokens {
		if tok == t {
			return true
		}
	}
	return false
}
