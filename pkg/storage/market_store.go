package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/settlex/settlex/pkg/market"
)

// MarketStore persists market definitions in Pebble so the catalog survives
// restarts. Values are gob-encoded Market records.
//
// keys: m:<market-id>
type MarketStore struct {
	db *pebble.DB
}

func NewMarketStore(path string) (*MarketStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open market store: %w", err)
	}
	return &MarketStore{db: db}, nil
}

func (s *MarketStore) Close() error { return s.db.Close() }

func kMarket(id string) []byte { return append([]byte("m:"), id...) }

// SaveMarket writes or overwrites a market record.
func (s *MarketStore) SaveMarket(m *market.Market) error {
	val, err := encodeGob(m)
	if err != nil {
		return fmt.Errorf("encode market %s: %w", m.ID, err)
	}
	if err := s.db.Set(kMarket(m.ID), val, pebble.Sync); err != nil {
		return fmt.Errorf("save market %s: %w", m.ID, err)
	}
	return nil
}

// LoadMarkets returns every stored market record.
func (s *MarketStore) LoadMarkets() ([]*market.Market, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("m:"),
		UpperBound: []byte("m;"), // ';' is ':'+1
	})
	if err != nil {
		return nil, fmt.Errorf("iterate markets: %w", err)
	}
	defer iter.Close()

	var markets []*market.Market
	for iter.First(); iter.Valid(); iter.Next() {
		var m market.Market
		if err := decodeGob(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("decode market %q: %w", iter.Key(), err)
		}
		markets = append(markets, &m)
	}
	return markets, iter.Error()
}
