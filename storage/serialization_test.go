package storage

import (
	"math"
	"testing"
	"time"

	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/credibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name string
		doc  *core.Document
	}{
		{
			name: "minimal document",
			doc: &core.Document{
				ID:      "scholar_0123456789ab",
				Source:  core.SourceScholar,
				Content: "Title: Graph networks",
			},
		},
		{
			name: "full document",
			doc: &core.Document{
				ID:      "linkedin_ada-lovelace",
				Source:  core.SourceLinkedIn,
				Content: "Name: Ada Lovelace\nSkills: analysis, engines",
				Metadata: core.Metadata{
					"full_name":              core.String("Ada Lovelace"),
					"total_years_experience": core.Float(12.5),
					"citations":              core.Int(4200),
					"open_to_work":           core.Bool(false),
					"skills":                 core.Strings("analysis", "engines"),
				},
				Embedding:   []float32{0.25, -1, float32(math.SmallestNonzeroFloat32), 0},
				Fingerprint: core.Fingerprint("x", nil),
				UpdatedAt:   now,
			},
		},
		{
			name: "unicode content",
			doc: &core.Document{
				ID:       "scholar_abcdefabcdef",
				Source:   core.SourceScholar,
				Content:  "Étude des réseaux 🔬",
				Metadata: core.Metadata{"authors": core.Strings("Zoë", "Łukasz")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalDocument(tt.doc)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalDocument(data)
			require.NoError(t, err)

			assert.Equal(t, tt.doc.ID, decoded.ID)
			assert.Equal(t, tt.doc.Source, decoded.Source)
			assert.Equal(t, tt.doc.Content, decoded.Content)
			assert.True(t, tt.doc.Metadata.Equal(decoded.Metadata), "metadata mismatch: %v", decoded.Metadata)
			assert.Equal(t, tt.doc.Fingerprint, decoded.Fingerprint)
			assert.True(t, tt.doc.UpdatedAt.Equal(decoded.UpdatedAt))
			if len(tt.doc.Embedding) == 0 {
				assert.Empty(t, decoded.Embedding)
			} else {
				assert.Equal(t, tt.doc.Embedding, decoded.Embedding)
			}
		})
	}
}

func TestMarshalDocumentDeterministic(t *testing.T) {
	doc := &core.Document{
		ID:     "scholar_0123456789ab",
		Source: core.SourceScholar,
		Metadata: core.Metadata{
			"b": core.String("2"), "a": core.String("1"), "c": core.Int(3),
		},
	}
	assert.Equal(t, MarshalDocument(doc), MarshalDocument(doc.Clone()))
}

func TestUnmarshalDocument_Invalid(t *testing.T) {
	valid := MarshalDocument(&core.Document{
		ID:        "scholar_0123456789ab",
		Source:    core.SourceScholar,
		Content:   "content",
		Embedding: []float32{1, 2, 3},
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", valid[:len(valid)/2]},
		{"huge length prefix", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDocument(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalVersion(t *testing.T) {
	v := &core.Version{
		CommitID:      "8f14e45f-ceea-467f-a0e7-5b1c4e1f6a11",
		Timestamp:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Message:       "Update vector database with 3 profiles from scholar",
		DocumentCount: 3,
		Digest:        core.SnapshotDigest([]string{"a", "b"}),
	}

	decoded, err := UnmarshalVersion(MarshalVersion(v))
	require.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestMarshalUnmarshalStats(t *testing.T) {
	st := credibility.NewStats()
	st.TotalProfiles = 7
	st.MaxYears = 31.5
	st.ExperienceDistribution[credibility.Bucket15Plus] = 2
	st.EducationDistribution["phd"] = 1
	st.UpdatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	decoded, err := UnmarshalStats(MarshalStats(st))
	require.NoError(t, err)
	assert.Equal(t, st, decoded)
}

func TestZeroTimeRoundTrip(t *testing.T) {
	decoded, err := UnmarshalVersion(MarshalVersion(&core.Version{CommitID: "c"}))
	require.NoError(t, err)
	assert.True(t, decoded.Timestamp.IsZero())
}
