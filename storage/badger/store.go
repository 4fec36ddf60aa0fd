// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/poiesic/expertfinder/ai"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// Store implements storage.DocumentStore on BadgerDB.
//
// Live documents live under doc:<gen>:<id>, where gen is the generation
// named by the livegen key. A checkpoint copies them under
// snap:<commit>:<id> and then records the version under ver:<commit>, with
// a history index under vert:<seq>. A restore writes the snapshot into a
// fresh generation and then switches livegen. Both bulk copies go through
// write batches; the final small transaction is the commit point, and keys
// left behind by an interrupted copy are removed when the store is opened.
type Store struct {
	backend  *Backend
	embedder ai.Embedder
	clock    clock.Clock
	retry    storage.RetryPolicy
	logger   *slog.Logger
	verSeq   *badger.Sequence
	genSeq   *badger.Sequence

	// gen is the live generation. Guarded by mu.
	gen uint64

	// mu serializes Checkpoint and Restore against each other and against
	// in-flight reads and writes.
	mu     sync.RWMutex
	closed bool
}

var (
	_ storage.DocumentStore  = (*Store)(nil)
	_ storage.VectorSearcher = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store) error

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		s.clock = c
		return nil
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithRetryPolicy sets the retry policy for embedding calls made by Query.
func WithRetryPolicy(p storage.RetryPolicy) Option {
	return func(s *Store) error {
		if p.MaxAttempts < 1 {
			return storage.ErrInvalidMaxAttempts
		}
		s.retry = p
		return nil
	}
}

// NewStore creates a versioned document store on backend. The embedder is
// used by Query and may be nil when only vector search is needed.
// The caller remains responsible for closing backend.
func NewStore(backend *Backend, embedder ai.Embedder, opts ...Option) (*Store, error) {
	s := &Store{
		backend:  backend,
		embedder: embedder,
		clock:    clock.WallClock,
		retry:    storage.DefaultRetryPolicy(),
		logger:   slog.Default().With("component", "document-store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	gen, err := readLiveGeneration(backend)
	if err != nil {
		return nil, err
	}
	s.gen = gen

	if s.verSeq, err = backend.GetSequence(versionSeq); err != nil {
		return nil, err
	}
	if s.genSeq, err = backend.GetSequence(generationSeq); err != nil {
		s.verSeq.Release()
		return nil, err
	}

	if err := s.collectGarbage(); err != nil {
		s.verSeq.Release()
		s.genSeq.Release()
		return nil, fmt.Errorf("collect garbage: %w", err)
	}
	return s, nil
}

func readLiveGeneration(backend *Backend) (uint64, error) {
	var gen uint64
	err := backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(liveGenerationKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			gen, err = decodeGeneration(val)
			return err
		})
	}, false)
	return gen, err
}

// collectGarbage removes document generations other than the live one and
// snapshot copies whose version record was never written.
func (s *Store) collectGarbage() error {
	live := makeDocumentPrefix(s.gen)
	stale, err := s.backend.deleteKeys([]byte(documentPrefix), func(key []byte) bool {
		return !bytes.HasPrefix(key, live)
	})
	if err != nil {
		return err
	}

	committed := make(map[string]struct{})
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(versionPrefix), false, func(key, _ []byte) error {
			committed[string(key[len(versionPrefix):])] = struct{}{}
			return nil
		})
	}, false)
	if err != nil {
		return err
	}
	orphaned, err := s.backend.deleteKeys([]byte(snapshotPrefix), func(key []byte) bool {
		_, ok := committed[commitFromSnapshotKey(key)]
		return !ok
	})
	if err != nil {
		return err
	}

	if stale > 0 || orphaned > 0 {
		s.logger.Info("removed leftover keys", "stale_documents", stale, "orphaned_snapshot_documents", orphaned)
	}
	return nil
}

// discard deletes keys written by a copy that did not commit. Failures
// are only logged; the next open collects whatever is left.
func (s *Store) discard(prefix []byte) {
	if _, err := s.backend.deleteKeys(prefix, nil); err != nil {
		s.logger.Warn("failed to discard uncommitted keys", "prefix", string(prefix), "err", err)
	}
}

// Close releases the store's sequences. Further calls fail with
// storage.ErrStorageClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.verSeq.Release(), s.genSeq.Release())
}

func (s *Store) check(ctx context.Context) error {
	if s.closed {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}

// Add upserts documents in one transaction, so a call is bounded by
// badger's transaction size limit; callers storing large sets add them in
// batches. UpdatedAt and Fingerprint are set by the store.
func (s *Store) Add(ctx context.Context, docs ...*core.Document) error {
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
	}
	if len(docs) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			doc.UpdatedAt = now
			doc.Fingerprint = core.Fingerprint(doc.Content, doc.Metadata)
			if err := tx.Set(makeDocumentKey(s.gen, doc.ID), storage.MarshalDocument(doc)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	s.logger.Debug("documents stored", "count", len(docs))
	return nil
}

// Get retrieves a live document by ID.
func (s *Store) Get(ctx context.Context, id core.Identifier) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var doc *core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(s.gen, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = storage.UnmarshalDocument(val)
			return err
		})
	}, false)
	return doc, err
}

// Delete removes live documents. Missing IDs are ignored.
func (s *Store) Delete(ctx context.Context, ids ...core.Identifier) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeDocumentKey(s.gen, id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of live documents matching opts.
func (s *Store) Count(ctx context.Context, opts ...storage.QueryOption) (int, error) {
	o := storage.ResolveQueryOptions(opts...)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocuments(tx, makeDocumentPrefix(s.gen), func(doc *core.Document) error {
			if o.Match(doc) {
				count++
			}
			return nil
		})
	}, false)
	return count, err
}

// All calls fn for every live document matching opts, in ID order. The
// documents are read from one consistent view before fn is first called,
// so fn may write to the store.
func (s *Store) All(ctx context.Context, fn func(*core.Document) error, opts ...storage.QueryOption) error {
	docs, err := s.collect(ctx, storage.ResolveQueryOptions(opts...))
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) collect(ctx context.Context, o storage.QueryOptions) ([]*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var docs []*core.Document
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocuments(tx, makeDocumentPrefix(s.gen), func(doc *core.Document) error {
			if o.Match(doc) {
				docs = append(docs, doc)
			}
			return nil
		})
	}, false)
	return docs, err
}

// Query embeds text and returns the k nearest live documents.
// Embedding failures are retried and reported as core.ErrUpstreamUnavailable.
func (s *Store) Query(ctx context.Context, text string, k int, opts ...storage.QueryOption) ([]*core.Document, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", core.ErrValidation, k)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", core.ErrValidation)
	}

	vector, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	scored, err := s.FindSimilar(ctx, vector, k, opts...)
	if err != nil {
		return nil, err
	}
	docs := make([]*core.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: store has no embedder", core.ErrValidation)
	}

	var vector []float32
	err := s.retry.Do(ctx, func() error {
		v, err := s.embedder.EmbedText(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: embed query: %w", core.ErrUpstreamUnavailable, err)
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// FindSimilar scans live documents and ranks them by dot product with
// vector, which equals cosine similarity for unit-length embeddings.
func (s *Store) FindSimilar(ctx context.Context, vector []float32, limit int, opts ...storage.QueryOption) ([]storage.ScoredDocument, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", core.ErrValidation, limit)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w: empty query vector", core.ErrValidation, storage.ErrInvalidQuery)
	}
	o := storage.ResolveQueryOptions(opts...)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var results []storage.ScoredDocument
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocuments(tx, makeDocumentPrefix(s.gen), func(doc *core.Document) error {
			if len(doc.Embedding) == 0 || !o.Match(doc) {
				return nil
			}
			score := dotProduct(vector, doc.Embedding)
			if score < o.MinSimilarity {
				return nil
			}
			results = append(results, storage.ScoredDocument{Document: doc, Score: score})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b storage.ScoredDocument) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Document.ID, b.Document.ID)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Checkpoint snapshots the live set. The documents are copied in batches
// and the version becomes visible only once the copy is complete.
func (s *Store) Checkpoint(ctx context.Context, message string) (*core.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	seq, err := s.nextVersionSeq()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	version := &core.Version{
		CommitID:  uuid.NewString(),
		Timestamp: s.clock.Now().UTC(),
		Message:   message,
	}

	fingerprints, err := s.copyDocuments(ctx, makeDocumentPrefix(s.gen), func(id core.Identifier) []byte {
		return makeSnapshotKey(version.CommitID, id)
	})
	if err == nil {
		version.DocumentCount = len(fingerprints)
		version.Digest = core.SnapshotDigest(fingerprints)
		err = s.backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Set(makeVersionKey(version.CommitID), storage.MarshalVersion(version)); err != nil {
				return err
			}
			if err := tx.Set(makeVersionOrderKey(seq), []byte(version.CommitID)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	}
	if err != nil {
		s.discard(makeSnapshotPrefix(version.CommitID))
		return nil, fmt.Errorf("checkpoint %s: %w", version.CommitID, err)
	}

	s.logger.Info("checkpoint created",
		"commit", version.CommitID,
		"documents", version.DocumentCount,
		"message", message)
	return version, nil
}

// copyDocuments copies every document under from to the key chosen by to,
// reading from one consistent view and writing through a batch. It returns
// the fingerprints recomputed from the copied content.
func (s *Store) copyDocuments(ctx context.Context, from []byte, to func(core.Identifier) []byte) ([]string, error) {
	var fingerprints []string
	err := s.backend.Batch(func(wb *badger.WriteBatch) error {
		return s.backend.WithTx(func(tx *badger.Txn) error {
			return scanPrefix(tx, from, false, func(_, val []byte) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				fingerprints = append(fingerprints, core.Fingerprint(doc.Content, doc.Metadata))
				return wb.Set(to(doc.ID), bytes.Clone(val))
			})
		}, false)
	})
	return fingerprints, err
}

func (s *Store) nextGeneration() (uint64, error) {
	for {
		gen, err := s.genSeq.Next()
		if err != nil {
			return 0, err
		}
		if gen > s.gen {
			return gen, nil
		}
	}
}

func (s *Store) nextVersionSeq() (uint64, error) {
	seq, err := s.verSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if seq == 0 {
		return s.verSeq.Next()
	}
	return seq, nil
}

// History returns up to limit versions, most recent first.
func (s *Store) History(ctx context.Context, limit int) ([]*core.Version, error) {
	if limit < 1 {
		limit = storage.DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var versions []*core.Version
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var commits []string
		err := scanPrefix(tx, []byte(versionOrderPrefix), true, func(_, val []byte) error {
			commits = append(commits, string(val))
			if len(commits) == limit {
				return errStopScan
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, commit := range commits {
			v, err := readVersion(tx, commit)
			if err != nil {
				return err
			}
			versions = append(versions, v)
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return versions, nil
}

// Restore replaces the live set with the snapshot taken at commitID. The
// snapshot is copied into a new generation and verified against the
// recorded digest; only then does the live generation switch, so a failed
// restore leaves the live set untouched.
func (s *Store) Restore(ctx context.Context, commitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	var version *core.Version
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		version, err = readVersion(tx, commitID)
		return err
	}, false)
	if err != nil {
		return fmt.Errorf("restore %s: %w", commitID, err)
	}

	gen, err := s.nextGeneration()
	if err != nil {
		return fmt.Errorf("restore %s: %w", commitID, err)
	}
	target := makeDocumentPrefix(gen)

	fingerprints, err := s.copyDocuments(ctx, makeSnapshotPrefix(commitID), func(id core.Identifier) []byte {
		return makeDocumentKey(gen, id)
	})
	if err == nil && (len(fingerprints) != version.DocumentCount || core.SnapshotDigest(fingerprints) != version.Digest) {
		err = fmt.Errorf("%w: expected %d documents, found %d", core.ErrSnapshotCorrupt, version.DocumentCount, len(fingerprints))
	}
	if err == nil {
		err = s.backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Set([]byte(liveGenerationKey), encodeGeneration(gen)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	}
	if err != nil {
		s.discard(target)
		return fmt.Errorf("restore %s: %w", commitID, err)
	}

	previous := s.gen
	s.gen = gen
	s.discard(makeDocumentPrefix(previous))

	s.logger.Info("checkpoint restored", "commit", commitID, "documents", len(fingerprints), "generation", gen)
	return nil
}

var errStopScan = errors.New("stop scan")

func scanDocuments(tx *badger.Txn, prefix []byte, fn func(*core.Document) error) error {
	return scanPrefix(tx, prefix, false, func(_, val []byte) error {
		doc, err := storage.UnmarshalDocument(val)
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

func readVersion(tx *badger.Txn, commitID string) (*core.Version, error) {
	item, err := tx.Get(makeVersionKey(commitID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: version %s", storage.ErrNotFound, commitID)
	}
	if err != nil {
		return nil, err
	}

	var v *core.Version
	err = item.Value(func(val []byte) error {
		v, err = storage.UnmarshalVersion(val)
		return err
	})
	return v, err
}
