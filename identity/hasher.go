package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/expertfinder/core"
)

const (
	// Delimiter separates field values in the hashed string.
	Delimiter = "_"

	// DigestLength is the number of hex characters kept from the digest.
	DigestLength = 12
)

// Field is one identity-bearing value. Name documents the field for the
// caller; only Value and the field position are hashed.
type Field struct {
	Name  string
	Value any
}

// F is shorthand for constructing a Field.
func F(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Generate derives an identifier from the ordered fields.
// When every field is empty the digest is that of the empty string; use
// IsAnonymous to detect that case.
func Generate(prefix string, fields ...Field) core.Identifier {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if s, ok := stringify(f.Value); ok {
			parts = append(parts, s)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, Delimiter)))
	digest := hex.EncodeToString(sum[:])[:DigestLength]
	return core.Identifier(prefix + "_" + digest)
}

// IsAnonymous reports whether every field is empty.
func IsAnonymous(fields ...Field) bool {
	for _, f := range fields {
		if _, ok := stringify(f.Value); ok {
			return false
		}
	}
	return true
}

// ScholarFields returns the identity fields of a scholarly record in hashing order.
func ScholarFields(title, year, url string, authors []string) []Field {
	return []Field{
		F("title", title),
		F("year", year),
		F("url", url),
		F("authors", authors),
	}
}

// ScholarID derives the identifier of a scholarly record.
func ScholarID(title, year, url string, authors []string) core.Identifier {
	return Generate(core.SourceScholar.Prefix(), ScholarFields(title, year, url, authors)...)
}

// LinkedInID derives the identifier of a professional profile. The network's
// own urn is used as is when present; otherwise the full name is hashed.
func LinkedInID(urn, fullName string) core.Identifier {
	prefix := core.SourceLinkedIn.Prefix()
	if urn = strings.TrimSpace(urn); urn != "" {
		return core.Identifier(prefix + "_" + sanitizeURN(urn))
	}
	return Generate(prefix, F("full_name", fullName))
}

// sanitizeURN keeps urns usable as storage keys.
func sanitizeURN(urn string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', ' ', '\t', '\n':
			return '-'
		}
		return r
	}, urn)
}

// stringify renders a field value and reports whether it is non-empty.
func stringify(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case []string:
		s = strings.Join(val, ",")
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'g', -1, 64)
	case core.Value:
		s = val.String()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	return s, s != ""
}
