package credibility

// CitationMetric scores an author's citation count.
type CitationMetric struct {
	weight float64
}

var _ Metric = (*CitationMetric)(nil)

// NewCitationMetric creates a citation metric with the given weight.
func NewCitationMetric(weight float64) *CitationMetric {
	return &CitationMetric{weight: weight}
}

// Name returns "citations".
func (m *CitationMetric) Name() string { return "citations" }

// Weight returns the configured weight.
func (m *CitationMetric) Weight() float64 { return m.weight }

// Score applies thresholds of 1000, 100 and 10 citations.
func (m *CitationMetric) Score(profile Profile) (float64, error) {
	switch c := profile.Citations; {
	case c >= 1000:
		return 3.0, nil
	case c >= 100:
		return 2.0, nil
	case c >= 10:
		return 1.0, nil
	default:
		return 0.0, nil
	}
}
