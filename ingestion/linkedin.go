package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/juju/clock"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
	"github.com/poiesic/expertfinder/identity"
)

type linkedinExperience struct {
	Title     string     `json:"title"`
	Company   string     `json:"company"`
	StartYear flexString `json:"start_year"`
	EndYear   flexString `json:"end_year"`
}

type linkedinEducation struct {
	School       string `json:"school"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study"`
}

type linkedinRecord struct {
	URN                  string               `json:"urn_id"`
	FullName             string               `json:"full_name"`
	Headline             string               `json:"headline"`
	Summary              string               `json:"summary"`
	Location             string               `json:"location_name"`
	Industry             string               `json:"industry"`
	CurrentTitle         string               `json:"current_title"`
	CurrentCompany       string               `json:"current_company"`
	Experiences          []linkedinExperience `json:"experiences"`
	TotalYearsExperience flexString           `json:"total_years_experience"`
	Educations           []linkedinEducation  `json:"educations"`
	LatestDegree         string               `json:"latest_degree"`
	Skills               nameList             `json:"skills"`
	Publications         nameList             `json:"publications"`
}

// Career levels derived from the current title.
const (
	CareerExecutive = "Executive"
	CareerDirector  = "Director"
	CareerManager   = "Manager"
	CareerSenior    = "Senior"
	CareerOther     = "Other"
)

// Education levels derived from the degree list.
const (
	EducationPhD       = "PhD"
	EducationMasters   = "Masters"
	EducationBachelors = "Bachelors"
	EducationOther     = "Other"
)

// Title terms per career level. Words are matched as whole tokens,
// phrases as substrings.
var (
	executiveTerms = []string{"ceo", "cto", "cfo", "coo", "chief", "president", "founder", "owner", "partner"}
	directorTerms  = []string{"director", "head", "vp", "vice president"}
	managerTerms   = []string{"manager", "lead"}
	seniorTerms    = []string{"senior", "sr", "principal"}
)

// LinkedInNormalizer normalizes professional profiles.
type LinkedInNormalizer struct {
	clock clock.Clock
}

var _ Normalizer = (*LinkedInNormalizer)(nil)

// NewLinkedInNormalizer creates a profile normalizer. The clock supplies
// the current year for open-ended positions; nil selects the wall clock.
func NewLinkedInNormalizer(c clock.Clock) *LinkedInNormalizer {
	if c == nil {
		c = clock.WallClock
	}
	return &LinkedInNormalizer{clock: c}
}

// Source returns core.SourceLinkedIn.
func (n *LinkedInNormalizer) Source() core.Source { return core.SourceLinkedIn }

// Normalize builds the profile text and the metadata read by the
// credibility metrics.
func (n *LinkedInNormalizer) Normalize(raw json.RawMessage) (*Normalized, error) {
	var rec linkedinRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	name := cleanText(rec.FullName)
	urn := strings.TrimSpace(rec.URN)
	if name == "" && urn == "" {
		return nil, fmt.Errorf("%w: profile has neither urn nor name", ErrMalformedRecord)
	}

	md := core.Metadata{}
	setString(md, core.KeyProfileURN, urn)
	setString(md, core.KeyFullName, name)
	setString(md, core.KeyHeadline, cleanText(rec.Headline))
	setString(md, core.KeyCurrentTitle, cleanText(rec.CurrentTitle))
	setString(md, core.KeyCurrentCompany, cleanText(rec.CurrentCompany))
	setString(md, core.KeyLocation, cleanText(rec.Location))
	setString(md, core.KeyIndustry, cleanText(rec.Industry))
	setStrings(md, core.KeySkills, dedupe(rec.Skills))
	setStrings(md, core.KeyPublications, dedupe(rec.Publications))
	setString(md, credibility.KeyLatestDegree, cleanText(rec.LatestDegree))

	if len(rec.Experiences) > 0 {
		spans := make([]string, 0, len(rec.Experiences))
		for _, exp := range rec.Experiences {
			if exp.StartYear == "" {
				continue
			}
			spans = append(spans, credibility.FormatSpan(exp.StartYear.String(), exp.EndYear.String()))
		}
		setStrings(md, credibility.KeyExperienceSpans, spans)
		md[core.KeyCareerLevel] = core.String(CareerLevel(rec.CurrentTitle))
	}

	years, ok := rec.TotalYearsExperience.Float()
	if !ok || years <= 0 {
		years = credibility.ProfileFromMetadata(md).YearsOfExperience(n.clock.Now().Year())
	}
	md[credibility.KeyTotalYearsExperience] = core.Float(years)

	if len(rec.Educations) > 0 {
		var degrees, schools []string
		for _, edu := range rec.Educations {
			degrees = append(degrees, cleanText(edu.Degree))
			schools = append(schools, cleanText(edu.School))
		}
		md[credibility.KeyDegrees] = core.Strings(degrees...)
		md[credibility.KeySchools] = core.Strings(schools...)
		md[credibility.KeyEducationLevel] = core.String(EducationLevel(degrees))
	}

	return &Normalized{
		ID: identity.LinkedInID(urn, name),
		Record: core.Record{
			Source:   core.SourceLinkedIn,
			Content:  linkedinContent(&rec, name),
			Metadata: md,
		},
	}, nil
}

// EducationLevel classifies the highest degree across the list.
func EducationLevel(degrees []string) string {
	var best float64
	for _, d := range degrees {
		best = max(best, credibility.DegreeScore(d))
	}
	switch best {
	case 3.0:
		return EducationPhD
	case 2.0:
		return EducationMasters
	case 1.0:
		return EducationBachelors
	default:
		return EducationOther
	}
}

// CareerLevel classifies a job title by seniority.
func CareerLevel(title string) string {
	t := strings.ToLower(title)
	tokens := titleTokens(t)
	// "vice president" must not read as "president".
	execTitle := strings.ReplaceAll(t, "vice president", " ")
	switch {
	case titleMatches(execTitle, titleTokens(execTitle), executiveTerms):
		return CareerExecutive
	case titleMatches(t, tokens, directorTerms):
		return CareerDirector
	case titleMatches(t, tokens, managerTerms):
		return CareerManager
	case titleMatches(t, tokens, seniorTerms):
		return CareerSenior
	default:
		return CareerOther
	}
}

func titleTokens(t string) []string {
	return strings.FieldsFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func titleMatches(title string, tokens, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(term, " ") {
			if strings.Contains(title, term) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if tok == term {
				return true
			}
		}
	}
	return false
}

func linkedinContent(rec *linkedinRecord, name string) string {
	var lines []string
	add := func(label, value string) {
		if value = cleanText(value); value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	add("Name", name)
	add("Headline", rec.Headline)
	if title, company := cleanText(rec.CurrentTitle), cleanText(rec.CurrentCompany); title != "" && company != "" {
		add("Current Position", title+" at "+company)
	} else {
		add("Current Position", title+company)
	}
	add("Location", rec.Location)
	add("Industry", rec.Industry)
	add("Summary", rec.Summary)
	if skills := dedupe(rec.Skills); len(skills) > 0 {
		add("Skills", strings.Join(skills, ", "))
	}

	if len(rec.Experiences) > 0 {
		lines = append(lines, "Experience:")
		for _, exp := range rec.Experiences {
			entry := cleanText(exp.Title)
			if c := cleanText(exp.Company); c != "" {
				entry += " at " + c
			}
			if exp.StartYear != "" {
				end := exp.EndYear.String()
				if end == "" {
					end = "Present"
				}
				entry += " (" + exp.StartYear.String() + " - " + end + ")"
			}
			lines = append(lines, "- "+strings.TrimSpace(entry))
		}
	}

	if len(rec.Educations) > 0 {
		lines = append(lines, "Education:")
		for _, edu := range rec.Educations {
			entry := cleanText(edu.Degree)
			if f := cleanText(edu.FieldOfStudy); f != "" {
				entry += " in " + f
			}
			if s := cleanText(edu.School); s != "" {
				entry += ", " + s
			}
			lines = append(lines, "- "+strings.TrimSpace(strings.TrimPrefix(entry, ", ")))
		}
	}

	if len(rec.Publications) > 0 {
		add("Publications", strings.Join(rec.Publications, "; "))
	}

	return strings.Join(lines, "\n")
}
