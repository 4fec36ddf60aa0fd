package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/expertfinder/credibility"
	"github.com/poiesic/expertfinder/storage"
)

// StatsRepository implements storage.StatsRepository for BadgerDB.
type StatsRepository struct {
	backend *Backend
}

var _ storage.StatsRepository = (*StatsRepository)(nil)

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(backend *Backend) *StatsRepository {
	return &StatsRepository{
		backend: backend,
	}
}

// SaveStats persists the credibility statistics.
func (r *StatsRepository) SaveStats(ctx context.Context, stats *credibility.Stats) error {
	if stats == nil {
		return errors.New("stats cannot be nil")
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(statsKey), storage.MarshalStats(stats)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadStats retrieves the credibility statistics.
// Returns storage.ErrNotFound if none have been saved.
func (r *StatsRepository) LoadStats(ctx context.Context) (*credibility.Stats, error) {
	var stats *credibility.Stats
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(statsKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: credibility stats", storage.ErrNotFound)
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			stats, unmarshalErr = storage.UnmarshalStats(val)
			return unmarshalErr
		})
	}, false)

	return stats, err
}
