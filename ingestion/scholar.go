package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
	"github.com/poiesic/expertfinder/identity"
)

type scholarAuthor struct {
	Name         string `json:"name"`
	Affiliations string `json:"affiliations"`
	Interests    string `json:"interests"`
	Website      string `json:"website"`
}

type scholarRecord struct {
	Title           string          `json:"title"`
	Snippet         string          `json:"snippet"`
	Year            flexString      `json:"year"`
	URL             string          `json:"url"`
	CitationCount   flexString      `json:"citation_count"`
	PublicationInfo string          `json:"publication_info"`
	Authors         []scholarAuthor `json:"authors"`
}

// ScholarNormalizer normalizes academic search results. One record is one
// article with its known authors.
type ScholarNormalizer struct{}

var _ Normalizer = (*ScholarNormalizer)(nil)

// NewScholarNormalizer creates a scholar normalizer.
func NewScholarNormalizer() *ScholarNormalizer {
	return &ScholarNormalizer{}
}

// Source returns core.SourceScholar.
func (n *ScholarNormalizer) Source() core.Source { return core.SourceScholar }

// Normalize builds the article text and its author metadata.
func (n *ScholarNormalizer) Normalize(raw json.RawMessage) (*Normalized, error) {
	var rec scholarRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	title := cleanText(rec.Title)
	snippet := cleanText(rec.Snippet)
	if title == "" && snippet == "" {
		return nil, fmt.Errorf("%w: scholar record has neither title nor snippet", ErrMalformedRecord)
	}

	var (
		names        []string
		affiliations []string
		interests    []string
		website      string
	)
	for _, a := range rec.Authors {
		names = append(names, cleanText(a.Name))
		affiliations = append(affiliations, cleanText(a.Affiliations))
		interests = append(interests, core.SplitList(cleanText(a.Interests))...)
		if website == "" {
			website = strings.TrimSpace(a.Website)
		}
	}
	names = dedupe(names)

	year := rec.Year.String()
	url := strings.TrimSpace(rec.URL)
	fields := identity.ScholarFields(rec.Title, year, rec.URL, names)

	md := core.Metadata{
		credibility.KeyCitations: core.Int(rec.CitationCount.Int()),
	}
	setString(md, core.KeyTitle, title)
	setString(md, core.KeyYear, year)
	setString(md, core.KeyURL, url)
	setString(md, core.KeyPublicationInfo, cleanText(rec.PublicationInfo))
	setString(md, core.KeyWebsite, website)
	setStrings(md, core.KeyAuthors, names)
	setStrings(md, credibility.KeyAuthorAffiliations, dedupe(affiliations))
	setStrings(md, core.KeyAuthorInterests, dedupe(interests))

	return &Normalized{
		ID: identity.Generate(core.SourceScholar.Prefix(), fields...),
		Record: core.Record{
			Source:   core.SourceScholar,
			Content:  scholarContent(title, snippet, cleanText(rec.PublicationInfo), rec.Authors),
			Metadata: md,
		},
		Anonymous: identity.IsAnonymous(fields...),
	}, nil
}

func scholarContent(title, snippet, pubInfo string, authors []scholarAuthor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nAbstract: %s\nPublication Info: %s\n\nAuthors:\n", title, snippet, pubInfo)
	if len(authors) == 0 {
		b.WriteString("No author information available")
		return b.String()
	}
	for i, a := range authors {
		if i > 0 {
			b.WriteString("\n")
		}
		parts := []string{"Name: " + cleanText(a.Name)}
		if s := cleanText(a.Affiliations); s != "" {
			parts = append(parts, "Affiliations: "+s)
		}
		if s := cleanText(a.Interests); s != "" {
			parts = append(parts, "Interests: "+s)
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}
