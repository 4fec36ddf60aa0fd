package credibility

import "strings"

// AffiliationMetric scores institutional affiliation.
// A match against a configured institution scores 3, any other
// affiliation scores 1.
type AffiliationMetric struct {
	weight       float64
	institutions []string
}

var _ Metric = (*AffiliationMetric)(nil)

// NewAffiliationMetric creates an affiliation metric. Institutions are
// matched case-insensitively as substrings of each affiliation.
func NewAffiliationMetric(weight float64, institutions ...string) *AffiliationMetric {
	lowered := make([]string, 0, len(institutions))
	for _, inst := range institutions {
		if inst = strings.ToLower(strings.TrimSpace(inst)); inst != "" {
			lowered = append(lowered, inst)
		}
	}
	return &AffiliationMetric{weight: weight, institutions: lowered}
}

// Name returns "affiliation".
func (m *AffiliationMetric) Name() string { return "affiliation" }

// Weight returns the configured weight.
func (m *AffiliationMetric) Weight() float64 { return m.weight }

// Score checks each affiliation against the configured institutions.
func (m *AffiliationMetric) Score(profile Profile) (float64, error) {
	var present bool
	for _, aff := range profile.Affiliations {
		aff = strings.ToLower(strings.TrimSpace(aff))
		if aff == "" {
			continue
		}
		present = true
		if containsAny(aff, m.institutions) {
			return 3.0, nil
		}
	}
	if present {
		return 1.0, nil
	}
	return 0.0, nil
}
