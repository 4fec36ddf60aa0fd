package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/poiesic/expertfinder/ai/mock"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
	"github.com/poiesic/expertfinder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, scholars, profiles int) *badger.Store {
	t.Helper()
	store, _, backend, err := badger.NewMemoryStore(nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})

	var docs []*core.Document
	for i := range scholars {
		docs = append(docs, &core.Document{
			ID:        core.Identifier(fmt.Sprintf("scholar_%03d", i)),
			Source:    core.SourceScholar,
			Content:   fmt.Sprintf("paper %d on graph learning", i),
			Embedding: []float32{1, 0},
		})
	}
	for i := range profiles {
		docs = append(docs, &core.Document{
			ID:        core.Identifier(fmt.Sprintf("linkedin_%03d", i)),
			Source:    core.SourceLinkedIn,
			Content:   fmt.Sprintf("engineer %d working on compilers", i),
			Embedding: []float32{0, 1},
		})
	}
	require.NoError(t, store.Add(context.Background(), docs...))
	return store
}

func embeddings(t *testing.T, store storage.DocumentStore, src core.Source) [][]float32 {
	t.Helper()
	var out [][]float32
	require.NoError(t, store.All(context.Background(), func(d *core.Document) error {
		out = append(out, d.Embedding)
		return nil
	}, storage.WithSource(src)))
	return out
}

func TestReembedderRun(t *testing.T) {
	store := setupStore(t, 7, 0)
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 16

	var buf bytes.Buffer
	config := &Config{BatchSize: 3, ReportInterval: 3, MaxRetries: 3, RetryDelay: time.Millisecond}
	r, err := NewReembedder(store, embedder, config, &buf, WithClock(testclock.NewClock(time.Now())))
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Documents)
	assert.Equal(t, 3, embedder.CallCount(), "7 documents in batches of 3")

	for _, vec := range embeddings(t, store, core.SourceScholar) {
		require.Len(t, vec, 16)
		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-4, "vectors are unit length")
	}
	assert.Contains(t, buf.String(), "7/7")
	assert.Contains(t, buf.String(), "Reembedding complete")
}

func TestReembedderSourceFilter(t *testing.T) {
	store := setupStore(t, 2, 3)
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 4

	r, err := NewReembedder(store, embedder, &Config{BatchSize: 10, ReportInterval: 10, MaxRetries: 1, Source: core.SourceLinkedIn}, nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Documents)

	for _, vec := range embeddings(t, store, core.SourceScholar) {
		assert.Equal(t, []float32{1, 0}, vec, "other sources are untouched")
	}
	for _, vec := range embeddings(t, store, core.SourceLinkedIn) {
		assert.Len(t, vec, 4)
	}
}

func TestReembedderEmptyStore(t *testing.T) {
	store := setupStore(t, 0, 0)
	var buf bytes.Buffer
	r, err := NewReembedder(store, mock.NewMockEmbedder(), nil, &buf)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Documents)
	assert.Contains(t, buf.String(), "No documents found")
}

func TestReembedderRetriesThenFails(t *testing.T) {
	store := setupStore(t, 4, 0)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("service unavailable")
	}

	r, err := NewReembedder(store, embedder, &Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Zero(t, summary.Documents)
	assert.Equal(t, 3, embedder.CallCount(), "first batch retried, then the run stops")
}

func TestReembedderRecoversAfterRetry(t *testing.T) {
	store := setupStore(t, 2, 0)
	embedder := mock.NewMockEmbedder()
	attempts := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return [][]float32{{3, 4}, {0, 2}}, nil
	}

	r, err := NewReembedder(store, embedder, &Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.6, 0.8}, {0, 1}}, embeddings(t, store, core.SourceScholar))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"zero batch", Config{BatchSize: 0, MaxRetries: 1}},
		{"zero retries", Config{BatchSize: 1, MaxRetries: 0}},
		{"bad source", Config{BatchSize: 1, MaxRetries: 1, Source: "myspace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.config.Validate(), core.ErrValidation)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestDocumentIteratorBatches(t *testing.T) {
	store := setupStore(t, 5, 0)
	it := NewDocumentIterator(store, 2)

	var sizes []int
	var first core.Identifier
	err := it.ForEach(context.Background(), func(docs []*core.Document) error {
		if first == "" {
			first = docs[0].ID
		}
		sizes = append(sizes, len(docs))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, core.Identifier("scholar_000"), first)

	stop := errors.New("stop")
	calls := 0
	err = it.ForEach(context.Background(), func([]*core.Document) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{"3-4-5", []float32{3, 4}, []float32{0.6, 0.8}},
		{"already unit", []float32{0, 1, 0}, []float32{0, 1, 0}},
		{"zero", []float32{0, 0}, []float32{0, 0}},
		{"empty", []float32{}, []float32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.in)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}

	in := []float32{2, 0}
	NormalizeVector(in)
	assert.Equal(t, float32(2), in[0], "input is not modified")
	assert.False(t, math.IsNaN(float64(NormalizeVector([]float32{1e-30})[0])))
}

func TestProgressTracker(t *testing.T) {
	clk := testclock.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, clk, 100, 25)

	tracker.Add(10)
	assert.Zero(t, tracker.Current(), "updates before Start are ignored")

	tracker.Start()
	tracker.Add(10)
	assert.Empty(t, buf.String(), "below the report interval")

	clk.Advance(2 * time.Second)
	tracker.Add(20)
	assert.Contains(t, buf.String(), "30/100 (30.0%) - 15.0 documents/s")

	tracker.Add(500)
	assert.Equal(t, 100, tracker.Current(), "capped at total")

	tracker.Finish()
	assert.Contains(t, buf.String(), "100/100 (100.0%)")
	assert.Equal(t, 2*time.Second, tracker.Elapsed())
}
