package position

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides Pebble-based persistence for token balances.
// Thread-safe: all operations go through the Ledger's mutex.
type Store struct {
	db *pebble.DB
}

// key: t:<20-byte-address><32-byte-tokenId>
func kBalance(user common.Address, token common.Hash) []byte {
	key := append([]byte("t:"), user.Bytes()...)
	return append(key, token.Bytes()...)
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

// SaveBalance persists one (user, tokenId) balance.
func (s *Store) SaveBalance(user common.Address, token common.Hash, amount int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(amount))
	if err := s.db.Set(kBalance(user, token), b[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save token balance: %w", err)
	}
	return nil
}

// LoadBalance loads one (user, tokenId) balance. Missing key reads as 0.
func (s *Store) LoadBalance(user common.Address, token common.Hash) int64 {
	data, closer, err := s.db.Get(kBalance(user, token))
	if err != nil {
		return 0
	}
	defer closer.Close()
	if len(data) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(data))
}
