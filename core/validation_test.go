package core

import (
	"errors"
	"math"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid document",
			doc: &Document{
				ID:      "scholar_0123456789ab",
				Source:  SourceScholar,
				Content: "Deep learning for protein folding",
			},
			wantErr: nil,
		},
		{
			name: "valid document with embedding",
			doc: &Document{
				ID:        "linkedin_ACoAAB",
				Source:    SourceLinkedIn,
				Content:   "Staff engineer",
				Embedding: []float32{0.1, 0.2},
			},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrValidation,
		},
		{
			name: "empty content",
			doc: &Document{
				ID:      "scholar_0123456789ab",
				Source:  SourceScholar,
				Content: "   ",
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "unknown source",
			doc: &Document{
				ID:      "scholar_0123456789ab",
				Source:  Source("myspace"),
				Content: "text",
			},
			wantErr: ErrInvalidSource,
		},
		{
			name: "missing prefix",
			doc: &Document{
				ID:      "0123456789ab",
				Source:  SourceScholar,
				Content: "text",
			},
			wantErr: ErrInvalidIdentifier,
		},
		{
			name: "NaN embedding",
			doc: &Document{
				ID:        "scholar_0123456789ab",
				Source:    SourceScholar,
				Content:   "text",
				Embedding: []float32{float32(math.NaN())},
			},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		id      Identifier
		wantErr bool
	}{
		{"scholar_0123456789ab", false},
		{"linkedin_urn123", false},
		{"", true},
		{"scholar_", true},
		{"_abc", true},
		{"scholar_ab:cd", true},
		{"scholar_ab cd", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
