// Package pebblestore is a Pebble-backed mosaic index for deployments that
// do not want SQLite. Records are stored as JSON under the key
// "hash|width|density|strategy".
package pebblestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"video-mosaic/internal/logging"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/mosaic"
)

// Store implements mosaic.Index on a Pebble database.
type Store struct {
	db *pebble.DB
}

var _ mosaic.Index = (*Store)(nil)

// Open opens or creates the store in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open mosaic store: %w", err)
	}
	logging.Info("Pebble mosaic index opened at %s", dir)
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Exists reports whether a record exists for key.
func (s *Store) Exists(ctx context.Context, key mosaic.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, closer, err := s.db.Get([]byte(key.String()))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

// Record stores rec, replacing any earlier record for the same key.
func (s *Store) Record(ctx context.Context, rec mosaic.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal mosaic record: %w", err)
	}
	return s.db.Set([]byte(rec.Key.String()), data, pebble.Sync)
}

// Get returns the record for key, or nil when there is none.
func (s *Store) Get(key mosaic.Key) (*mosaic.Record, error) {
	data, closer, err := s.db.Get([]byte(key.String()))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var rec mosaic.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mosaic record: %w", err)
	}
	return &rec, nil
}

// List returns every record in key order. Undecodable values are skipped.
func (s *Store) List() ([]mosaic.Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []mosaic.Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec mosaic.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			logging.Debug("Skipping undecodable index entry %q: %v", iter.Key(), err)
			continue
		}
		records = append(records, rec)
	}
	return records, iter.Error()
}

// GetStats reports the number of records for the metrics collector.
func (s *Store) GetStats() metrics.Stats {
	records, err := s.List()
	if err != nil {
		logging.Warn("Failed to count mosaic records: %v", err)
	}
	return metrics.Stats{TotalMosaics: len(records)}
}

// Prune removes records created before now-maxAge and returns how many were
// removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}

	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var rec mosaic.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if rec.CreatedAt.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			stale = append(stale, key)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		if err := batch.Delete(key, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(stale), nil
}
