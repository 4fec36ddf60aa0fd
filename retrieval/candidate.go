package retrieval

import (
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
)

// candidate carries one retrieved document through the stages.
type candidate struct {
	doc       *core.Document
	summary   string
	profile   credibility.Profile
	result    credibility.CredibilityResult
	placement *credibility.Placement
}

// expert projects the candidate onto its external form.
func (c *candidate) expert() core.Expert {
	md := c.doc.Metadata
	e := core.Expert{
		Name:             expertName(c.doc),
		Source:           c.doc.Source,
		Company:          md.String(core.KeyCurrentCompany),
		Location:         md.String(core.KeyLocation),
		Skills:           md.Strings(core.KeySkills),
		Citations:        md.Int(credibility.KeyCitations),
		Interests:        nonNil(md.Strings(core.KeyAuthorInterests)),
		Publications:     nonNil(md.Strings(core.KeyPublications)),
		Summary:          c.summary,
		CredibilityScore: c.result.Total,
	}

	switch c.doc.Source {
	case core.SourceScholar:
		if title := md.String(core.KeyTitle); title != "" {
			e.Publications = append(e.Publications, title)
		}
	default:
		e.Title = md.String(core.KeyCurrentTitle)
		if e.Title == "" {
			e.Title = md.String(core.KeyHeadline)
		}
	}

	if c.placement != nil {
		e.CredibilityLevel = c.placement.Level
		e.CredibilityPercentile = c.placement.Percentile
		e.YearsExperience = c.placement.YearsExperience
	}
	return e
}

func expertName(doc *core.Document) string {
	if name := doc.Metadata.String(core.KeyFullName); name != "" {
		return name
	}
	if authors := doc.Metadata.Strings(core.KeyAuthors); len(authors) > 0 {
		return authors[0]
	}
	return doc.Metadata.String(core.KeyTitle)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
