package credibility

import (
	"strconv"
	"strings"

	"github.com/poiesic/expertfinder/core"
)

const (
	// MinScore is the lowest score a metric may return.
	MinScore = 0.0
	// MaxScore is the highest score a metric may return.
	MaxScore = 3.0
)

// Metadata keys read by ProfileFromMetadata.
const (
	KeyTotalYearsExperience = "total_years_experience"
	KeyYearsExperience      = "years_experience"
	KeyExperienceSpans      = "experience_spans"
	KeyEducationLevel       = "education_level"
	KeyLatestDegree         = "latest_degree"
	KeyDegrees              = "degrees"
	KeySchools              = "schools"
	KeyCitations            = "citations"
	KeyAffiliations         = "affiliations"
	KeyAuthorAffiliations   = "author_affiliations"
)

// Metric converts a profile into a bounded sub-score.
// Implementations must be stateless and safe for concurrent use.
type Metric interface {
	// Name identifies the metric in results and logs.
	Name() string

	// Weight multiplies the score during aggregation. Must be > 0.
	Weight() float64

	// Score returns a value in [MinScore, MaxScore].
	Score(profile Profile) (float64, error)
}

// Experience is one position held, with years kept as harvested strings.
type Experience struct {
	Title     string
	Company   string
	StartYear string
	EndYear   string // empty means current
}

// Education is one degree entry.
type Education struct {
	School       string
	Degree       string
	FieldOfStudy string
}

// Profile is the metric input: a typed view over document metadata.
type Profile struct {
	TotalYearsExperience float64
	Experiences          []Experience
	EducationLevel       string
	LatestDegree         string
	Educations           []Education
	Citations            int
	Affiliations         []string

	// Metadata holds the raw attributes for metrics that need more.
	Metadata core.Metadata
}

// ProfileFromMetadata derives a Profile from stored document metadata.
func ProfileFromMetadata(md core.Metadata) Profile {
	p := Profile{
		EducationLevel: md.String(KeyEducationLevel),
		LatestDegree:   md.String(KeyLatestDegree),
		Citations:      md.Int(KeyCitations),
		Metadata:       md,
	}

	if years, ok := md.Float(KeyTotalYearsExperience); ok {
		p.TotalYearsExperience = years
	} else if years, ok := md.Float(KeyYearsExperience); ok {
		p.TotalYearsExperience = years
	}

	for _, span := range md.Strings(KeyExperienceSpans) {
		start, end, _ := strings.Cut(span, "-")
		p.Experiences = append(p.Experiences, Experience{
			StartYear: strings.TrimSpace(start),
			EndYear:   strings.TrimSpace(end),
		})
	}

	degrees := md.Strings(KeyDegrees)
	schools := md.Strings(KeySchools)
	for i, degree := range degrees {
		edu := Education{Degree: degree}
		if i < len(schools) {
			edu.School = schools[i]
		}
		p.Educations = append(p.Educations, edu)
	}

	p.Affiliations = md.Strings(KeyAffiliations)
	if len(p.Affiliations) == 0 {
		p.Affiliations = md.Strings(KeyAuthorAffiliations)
	}

	return p
}

// FormatSpan renders an experience span the way ProfileFromMetadata parses it.
func FormatSpan(start, end string) string {
	return strings.TrimSpace(start) + "-" + strings.TrimSpace(end)
}

// YearsOfExperience returns the profile's total years, preferring the
// precomputed total. currentYear fills open-ended spans.
func (p Profile) YearsOfExperience(currentYear int) float64 {
	if p.TotalYearsExperience > 0 {
		return p.TotalYearsExperience
	}

	var total float64
	for _, exp := range p.Experiences {
		start, err := strconv.Atoi(strings.TrimSpace(exp.StartYear))
		if err != nil {
			continue
		}
		end := currentYear
		if s := strings.TrimSpace(exp.EndYear); s != "" {
			end, err = strconv.Atoi(s)
			if err != nil {
				continue
			}
		}
		if span := end - start; span > 0 {
			total += float64(span)
		}
	}
	return total
}
