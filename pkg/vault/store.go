package vault

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides Pebble-based persistence for vault balances.
// Thread-safe: all operations go through the Vault's mutex.
type Store struct {
	db *pebble.DB
}

// keys: a:<20-byte-address> available, l:<marketID> locked pool
func kAvailable(user common.Address) []byte { return append([]byte("a:"), user.Bytes()...) }
func kLocked(market string) []byte          { return append([]byte("l:"), market...) }

func encodeAmount(amount int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(amount))
	return b[:]
}

func decodeAmount(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

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

// SaveAvailable persists a user's available balance.
func (s *Store) SaveAvailable(user common.Address, amount int64) error {
	if err := s.db.Set(kAvailable(user), encodeAmount(amount), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// LoadAvailable loads a user's available balance. Missing key reads as 0.
func (s *Store) LoadAvailable(user common.Address) int64 {
	return s.loadAmount(kAvailable(user))
}

// SaveLocked persists a market's locked pool total.
func (s *Store) SaveLocked(market string, amount int64) error {
	if err := s.db.Set(kLocked(market), encodeAmount(amount), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save locked pool: %w", err)
	}
	return nil
}

// LoadLocked loads a market's locked pool total. Missing key reads as 0.
func (s *Store) LoadLocked(market string) int64 {
	return s.loadAmount(kLocked(market))
}

func (s *Store) loadAmount(key []byte) int64 {
	data, closer, err := s.db.Get(key)
	if err != nil {
		return 0
	}
	defer closer.Close()
	return decodeAmount(data)
}
