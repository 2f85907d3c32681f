package oracle

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store provides Pebble-based persistence for market resolutions.
type Store struct {
	db *pebble.DB
}

// key: r:<marketID>, value: single answer byte
func kResolution(marketID string) []byte { return append([]byte("r:"), marketID...) }

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAnswer persists a market's final answer.
func (s *Store) SaveAnswer(marketID string, answer uint8) error {
	if err := s.db.Set(kResolution(marketID), []byte{answer}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save resolution: %w", err)
	}
	return nil
}

// LoadAll returns every recorded (market, answer) pair.
func (s *Store) LoadAll() (map[string]uint8, error) {
	prefix := []byte("r:")
	upper := []byte("r;") // ';' is ':'+1
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	answers := make(map[string]uint8)
	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) != 1 {
			continue // Skip invalid entries
		}
		marketID := string(iter.Key()[len(prefix):])
		answers[marketID] = val[0]
	}
	return answers, nil
}
