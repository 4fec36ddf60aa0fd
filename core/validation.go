package core

import (
	"fmt"
	"math"
	"strings"
)

// ValidateDocument checks that a document can be written to the store.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrValidation)
	}

	if err := ValidateIdentifier(doc.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if !doc.Source.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidSource, doc.Source)
	}

	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
	}

	for _, v := range doc.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: embedding contains non-finite values", ErrValidation)
		}
	}

	return nil
}

// ValidateIdentifier checks the <prefix>_<digest> shape of an identifier.
func ValidateIdentifier(id Identifier) error {
	prefix, rest, ok := strings.Cut(string(id), "_")
	if !ok || prefix == "" || rest == "" {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	if strings.ContainsAny(string(id), " \t\n:") {
		return fmt.Errorf("%w: %q contains separator characters", ErrInvalidIdentifier, id)
	}
	return nil
}
