package market

import (
	"fmt"
	"sync"

	"github.com/settlex/settlex/pkg/util"
)

// Catalog persists market definitions. The registry stays usable without
// one; a nil catalog means memory-only operation.
type Catalog interface {
	SaveMarket(m *Market) error
	LoadMarkets() ([]*Market, error)
}

// Registry manages all markets in a thread-safe manner.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // id -> market
	clock   util.Clock
	catalog Catalog
}

// NewRegistry creates an empty registry using the real clock.
func NewRegistry() *Registry {
	return NewRegistryWithClock(util.RealClock{})
}

// NewRegistryWithClock creates an empty registry with an injected clock
// (tests pin maturity without sleeping).
func NewRegistryWithClock(clock util.Clock) *Registry {
	return &Registry{
		markets: make(map[string]*Market),
		clock:   clock,
	}
}

// NewRegistryWithCatalog creates a registry backed by a catalog store and
// seeds it with the catalog's existing markets.
func NewRegistryWithCatalog(catalog Catalog) (*Registry, error) {
	r := NewRegistry()
	r.catalog = catalog

	stored, err := catalog.LoadMarkets()
	if err != nil {
		return nil, fmt.Errorf("failed to load markets: %w", err)
	}
	for _, m := range stored {
		r.markets[m.ID] = m
	}
	return r, nil
}

// Register adds a new market.
// Returns error if a market with the same id already exists.
func (r *Registry) Register(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[m.ID]; exists {
		return fmt.Errorf("market %s already registered", m.ID)
	}

	if r.catalog != nil {
		if err := r.catalog.SaveMarket(m); err != nil {
			return fmt.Errorf("failed to persist market: %w", err)
		}
	}
	// Store a copy so the caller's pointer cannot mutate registry state.
	stored := *m
	r.markets[m.ID] = &stored
	return nil
}

// Get retrieves a market by id. The returned value is a snapshot: later
// status changes do not show through it and mutating it does not touch the
// registry.
func (r *Registry) Get(id string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[id]
	if !exists {
		return nil, fmt.Errorf("market %s not found", id)
	}
	snapshot := *m
	return &snapshot, nil
}

// Exists checks if a market is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[id]
	return exists
}

// OutcomeCount returns the number of outcomes for a market.
func (r *Registry) OutcomeCount(id string) (uint8, error) {
	m, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return m.Outcomes, nil
}

// IsMature reports whether a market's deadline has passed (or it has none).
func (r *Registry) IsMature(id string) (bool, error) {
	m, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return m.IsMature(r.clock.Now()), nil
}

// List returns a snapshot of all registered markets.
func (r *Registry) List() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	markets := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		snapshot := *m
		markets = append(markets, &snapshot)
	}
	return markets
}

// SetStatus changes a market's lifecycle state.
// Settled is terminal.
func (r *Registry) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[id]
	if !exists {
		return fmt.Errorf("market %s not found", id)
	}
	if m.Status == Settled {
		return fmt.Errorf("cannot change status from Settled (terminal state)")
	}

	m.Status = status
	if r.catalog != nil {
		if err := r.catalog.SaveMarket(m); err != nil {
			return fmt.Errorf("failed to persist market: %w", err)
		}
	}
	return nil
}

// Count returns the total number of registered markets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}
