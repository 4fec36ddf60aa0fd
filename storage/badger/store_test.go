package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/juju/clock/testclock"
	"github.com/poiesic/expertfinder/ai/mock"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) (*Store, *mock.MockEmbedder) {
	t.Helper()
	embedder := mock.NewMockEmbedder()
	opts = append([]Option{
		WithClock(testclock.NewClock(epoch)),
		WithRetryPolicy(storage.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	}, opts...)
	store, _, backend, err := NewMemoryStore(embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		backend.Close()
	})
	return store, embedder
}

func testDoc(id string, src core.Source, content string) *core.Document {
	return &core.Document{
		ID:        core.Identifier(id),
		Source:    src,
		Content:   content,
		Metadata:  core.Metadata{"name": core.String(id)},
		Embedding: mock.WordVector(content, mock.DefaultDimension),
	}
}

func liveIDs(t *testing.T, s *Store) []string {
	t.Helper()
	var ids []string
	require.NoError(t, s.All(context.Background(), func(d *core.Document) error {
		ids = append(ids, string(d.ID))
		return nil
	}))
	return ids
}

func TestStoreAddGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("scholar_0123456789ab", core.SourceScholar, "Title: Graph neural networks")
	require.NoError(t, store.Add(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, got.Content)
	assert.True(t, doc.Metadata.Equal(got.Metadata))
	assert.Equal(t, doc.Embedding, got.Embedding)
	assert.Equal(t, core.Fingerprint(doc.Content, doc.Metadata), got.Fingerprint)
	assert.True(t, got.UpdatedAt.Equal(epoch))

	_, err = store.Get(ctx, "scholar_ffffffffffff")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreAddIsIdempotentUpsert(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("linkedin_ada", core.SourceLinkedIn, "Name: Ada")
	require.NoError(t, store.Add(ctx, doc))
	require.NoError(t, store.Add(ctx, doc))

	updated := testDoc("linkedin_ada", core.SourceLinkedIn, "Name: Ada Lovelace")
	require.NoError(t, store.Add(ctx, updated))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, "linkedin_ada")
	require.NoError(t, err)
	assert.Equal(t, "Name: Ada Lovelace", got.Content)
}

func TestStoreAddValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		doc  *core.Document
	}{
		{"nil", nil},
		{"bad id", testDoc("noprefix", core.SourceScholar, "x")},
		{"bad source", testDoc("web_1", core.Source("web"), "x")},
		{"empty content", testDoc("scholar_1", core.SourceScholar, "  ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := testDoc("scholar_good", core.SourceScholar, "fine")
			err := store.Add(ctx, good, tt.doc)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected batch writes nothing")
}

func TestStoreCountAndAllBySource(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx,
		testDoc("scholar_b", core.SourceScholar, "b"),
		testDoc("scholar_a", core.SourceScholar, "a"),
		testDoc("linkedin_c", core.SourceLinkedIn, "c"),
	))

	n, err := store.Count(ctx, storage.WithSource(core.SourceScholar))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Count(ctx, storage.WithSource(core.SourceLinkedIn))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"linkedin_c", "scholar_a", "scholar_b"}, liveIDs(t, store))

	stop := errors.New("stop")
	calls := 0
	err = store.All(ctx, func(*core.Document) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, testDoc("scholar_a", core.SourceScholar, "a")))
	require.NoError(t, store.Delete(ctx, "scholar_a", "scholar_missing"))

	_, err := store.Get(ctx, "scholar_a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreQuery(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx,
		testDoc("scholar_ml", core.SourceScholar, "machine learning for robotics"),
		testDoc("scholar_bio", core.SourceScholar, "protein folding biology"),
		testDoc("linkedin_ml", core.SourceLinkedIn, "machine learning engineer"),
	))

	docs, err := store.Query(ctx, "machine learning", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.ElementsMatch(t, []core.Identifier{"scholar_ml", "linkedin_ml"}, []core.Identifier{docs[0].ID, docs[1].ID})
	assert.Equal(t, 1, embedder.CallCount())

	docs, err = store.Query(ctx, "machine learning", 5, storage.WithSource(core.SourceScholar))
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, core.Identifier("scholar_ml"), docs[0].ID)
	for _, d := range docs {
		assert.Equal(t, core.SourceScholar, d.Source)
	}

	docs, err = store.Query(ctx, "machine learning", 5, storage.WithMinSimilarity(0.1))
	require.NoError(t, err)
	assert.Len(t, docs, 2, "unrelated document falls below the threshold")

	docs, err = store.Query(ctx, "machine learning", 5,
		storage.WithFilter(storage.Eq("name", core.String("linkedin_ml"))))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, core.Identifier("linkedin_ml"), docs[0].ID)
}

func TestStoreQueryTiesBreakByID(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	vec := []float32{1, 0}
	for _, id := range []string{"scholar_c", "scholar_a", "scholar_b"} {
		d := testDoc(id, core.SourceScholar, "same")
		d.Embedding = vec
		require.NoError(t, store.Add(ctx, d))
	}
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) { return vec, nil }

	docs, err := store.Query(ctx, "anything", 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []core.Identifier{"scholar_a", "scholar_b", "scholar_c"},
		[]core.Identifier{docs[0].ID, docs[1].ID, docs[2].ID})
}

func TestStoreQueryErrors(t *testing.T) {
	store, embedder := newTestStore(t)
	ctx := context.Background()

	_, err := store.Query(ctx, "graphs", 0)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = store.Query(ctx, "   ", 3)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, 0, embedder.CallCount())

	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}
	_, err = store.Query(ctx, "graphs", 3)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Equal(t, 3, embedder.CallCount(), "embedding is retried")

	_, err = store.FindSimilar(ctx, nil, 3)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestStoreCheckpointAndHistory(t *testing.T) {
	clk := testclock.NewClock(epoch)
	store, _ := newTestStore(t, WithClock(clk))
	ctx := context.Background()

	history, err := store.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, store.Add(ctx, testDoc("scholar_a", core.SourceScholar, "a")))
	v1, err := store.Checkpoint(ctx, "first")
	require.NoError(t, err)
	assert.NotEmpty(t, v1.CommitID)
	assert.Equal(t, 1, v1.DocumentCount)
	assert.True(t, v1.Timestamp.Equal(epoch))

	require.NoError(t, store.Add(ctx, testDoc("scholar_b", core.SourceScholar, "b")))
	v2, err := store.Checkpoint(ctx, "second")
	require.NoError(t, err)
	assert.NotEqual(t, v1.CommitID, v2.CommitID)
	assert.Equal(t, 2, v2.DocumentCount)
	assert.NotEqual(t, v1.Digest, v2.Digest)

	clk.Advance(time.Hour)
	v3, err := store.Checkpoint(ctx, "third")
	require.NoError(t, err)
	assert.Equal(t, v2.Digest, v3.Digest, "same live set, same digest")

	history, err = store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"third", "second", "first"},
		[]string{history[0].Message, history[1].Message, history[2].Message})

	history, err = store.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, v3.CommitID, history[0].CommitID)
}

func TestStoreHistoryDefaultLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < storage.DefaultHistoryLimit+2; i++ {
		_, err := store.Checkpoint(ctx, fmt.Sprintf("v%d", i))
		require.NoError(t, err)
	}
	history, err := store.History(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, history, storage.DefaultHistoryLimit)
	assert.Equal(t, fmt.Sprintf("v%d", storage.DefaultHistoryLimit+1), history[0].Message)
}

func TestStoreRestore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx,
		testDoc("scholar_a", core.SourceScholar, "a"),
		testDoc("scholar_b", core.SourceScholar, "b"),
	))
	v1, err := store.Checkpoint(ctx, "two docs")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "scholar_a"))
	require.NoError(t, store.Add(ctx,
		testDoc("scholar_b", core.SourceScholar, "b changed"),
		testDoc("linkedin_c", core.SourceLinkedIn, "c"),
	))

	require.NoError(t, store.Restore(ctx, v1.CommitID))
	assert.Equal(t, []string{"scholar_a", "scholar_b"}, liveIDs(t, store))

	b, err := store.Get(ctx, "scholar_b")
	require.NoError(t, err)
	assert.Equal(t, "b", b.Content)

	// Snapshots are immutable: restoring twice yields the same set.
	require.NoError(t, store.Add(ctx, testDoc("linkedin_d", core.SourceLinkedIn, "d")))
	require.NoError(t, store.Restore(ctx, v1.CommitID))
	assert.Equal(t, []string{"scholar_a", "scholar_b"}, liveIDs(t, store))
}

func TestStoreRestoreUnknownCommit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sentinel := testDoc("scholar_sentinel", core.SourceScholar, "sentinel")
	require.NoError(t, store.Add(ctx, sentinel))

	err := store.Restore(ctx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "restore 00000000-0000-0000-0000-000000000000")

	got, err := store.Get(ctx, sentinel.ID)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", got.Content)
}

func TestStoreRestoreCorruptSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, testDoc("scholar_a", core.SourceScholar, "a")))
	v, err := store.Checkpoint(ctx, "snap")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, testDoc("scholar_live", core.SourceScholar, "live")))

	tampered := testDoc("scholar_a", core.SourceScholar, "tampered")
	err = store.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSnapshotKey(v.CommitID, tampered.ID), storage.MarshalDocument(tampered)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	err = store.Restore(ctx, v.CommitID)
	assert.ErrorIs(t, err, core.ErrSnapshotCorrupt)
	assert.Equal(t, []string{"scholar_a", "scholar_live"}, liveIDs(t, store), "live set untouched")
}

func TestStoreConcurrentCheckpoints(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 4
	const perWriter = 10

	var wg sync.WaitGroup
	versions := make(chan *core.Version, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("scholar_w%d-%d", w, i)
				assert.NoError(t, store.Add(ctx, testDoc(id, core.SourceScholar, id)))
			}
			v, err := store.Checkpoint(ctx, fmt.Sprintf("writer %d", w))
			assert.NoError(t, err)
			versions <- v
		}(w)
	}
	wg.Wait()
	close(versions)

	// Every snapshot is internally consistent and restorable.
	for v := range versions {
		require.NotNil(t, v)
		require.NoError(t, store.Restore(ctx, v.CommitID))
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, v.DocumentCount, n)
	}

	history, err := store.History(ctx, writers)
	require.NoError(t, err)
	assert.Len(t, history, writers)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	store, err := NewStore(backend, nil)
	require.NoError(t, err)

	require.NoError(t, store.Add(ctx, testDoc("scholar_a", core.SourceScholar, "a")))
	v, err := store.Checkpoint(ctx, "persisted")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	store, err = NewStore(backend, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "scholar_a")
	require.NoError(t, err)

	history, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, v.CommitID, history[0].CommitID)

	// Version sequence continues after reopen.
	_, err = store.Checkpoint(ctx, "after reopen")
	require.NoError(t, err)
	history, err = store.History(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "after reopen", history[0].Message)
}

// A snapshot of this size is far beyond what badger accepts in a single
// transaction.
func TestStoreCheckpointRestoreLargeSet(t *testing.T) {
	if testing.Short() {
		t.Skip("large snapshot")
	}
	store, _ := newTestStore(t)
	ctx := context.Background()

	const total = 3000
	const dim = 1536
	const chunk = 100
	for start := 0; start < total; start += chunk {
		docs := make([]*core.Document, 0, chunk)
		for i := start; i < start+chunk; i++ {
			id := fmt.Sprintf("scholar_%05d", i)
			doc := testDoc(id, core.SourceScholar, id+" publishes on retrieval")
			doc.Embedding = mock.WordVector(doc.Content, dim)
			docs = append(docs, doc)
		}
		require.NoError(t, store.Add(ctx, docs...))
	}

	v, err := store.Checkpoint(ctx, "large")
	require.NoError(t, err)
	assert.Equal(t, total, v.DocumentCount)

	require.NoError(t, store.Delete(ctx, "scholar_00000"))
	require.NoError(t, store.Add(ctx, testDoc("linkedin_extra", core.SourceLinkedIn, "extra")))

	require.NoError(t, store.Restore(ctx, v.CommitID))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, v.DocumentCount, n)

	_, err = store.Get(ctx, "scholar_00000")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "linkedin_extra")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreRestoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	store, err := NewStore(backend, nil)
	require.NoError(t, err)

	require.NoError(t, store.Add(ctx, testDoc("scholar_a", core.SourceScholar, "a")))
	v, err := store.Checkpoint(ctx, "only a")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, testDoc("scholar_b", core.SourceScholar, "b")))
	require.NoError(t, store.Restore(ctx, v.CommitID))
	require.NoError(t, store.Add(ctx, testDoc("scholar_c", core.SourceScholar, "c")))
	require.NoError(t, store.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	store, err = NewStore(backend, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, []string{"scholar_a", "scholar_c"}, liveIDs(t, store))

	// A second restore after reopen still moves to a fresh generation.
	require.NoError(t, store.Restore(ctx, v.CommitID))
	assert.Equal(t, []string{"scholar_a"}, liveIDs(t, store))
}

func TestStoreOpenCollectsLeftovers(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	store, err := NewStore(backend, nil)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, testDoc("scholar_a", core.SourceScholar, "a")))
	v, err := store.Checkpoint(ctx, "kept")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Leftovers of an interrupted checkpoint and an interrupted restore.
	orphan := testDoc("scholar_orphan", core.SourceScholar, "orphan")
	err = backend.Batch(func(wb *badger.WriteBatch) error {
		if err := wb.Set(makeSnapshotKey("unfinished", orphan.ID), storage.MarshalDocument(orphan)); err != nil {
			return err
		}
		return wb.Set(makeDocumentKey(7, orphan.ID), storage.MarshalDocument(orphan))
	})
	require.NoError(t, err)

	store, err = NewStore(backend, nil)
	require.NoError(t, err)
	defer store.Close()

	keys := func(prefix string) []string {
		var got []string
		err := backend.WithTx(func(tx *badger.Txn) error {
			return scanPrefix(tx, []byte(prefix), false, func(key, _ []byte) error {
				got = append(got, string(key))
				return nil
			})
		}, false)
		require.NoError(t, err)
		return got
	}
	assert.Equal(t, []string{string(makeDocumentKey(0, "scholar_a"))}, keys(documentPrefix))
	assert.Equal(t, []string{string(makeSnapshotKey(v.CommitID, "scholar_a"))}, keys(snapshotPrefix))

	require.NoError(t, store.Restore(ctx, v.CommitID))
	assert.Equal(t, []string{"scholar_a"}, liveIDs(t, store))
}

func TestStoreClosed(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	_, err := store.Get(ctx, "scholar_a")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.Checkpoint(ctx, "x")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStoreOptions(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewStore(backend, nil, WithRetryPolicy(storage.RetryPolicy{}))
	assert.ErrorIs(t, err, storage.ErrInvalidMaxAttempts)
	_, err = NewStore(backend, nil, WithLogger(nil))
	assert.Error(t, err)
	_, err = NewStore(backend, nil, WithClock(nil))
	assert.Error(t, err)
}
