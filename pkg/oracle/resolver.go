// Package oracle is the resolution authority: one write-once
// (resolved, answer) cell per market.
package oracle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrAlreadyResolved means the market's answer cell was already written.
	ErrAlreadyResolved = errors.New("market already resolved")

	// ErrNotMature means the market's deadline has not passed yet.
	ErrNotMature = errors.New("market not mature")

	// ErrNotAuthority means the caller is not the configured oracle.
	ErrNotAuthority = errors.New("caller is not the resolution authority")
)

// Markets is the slice of the market registry the resolver needs.
type Markets interface {
	OutcomeCount(id string) (uint8, error)
	IsMature(id string) (bool, error)
}

type resolution struct {
	Answer uint8
}

// Resolver records final answers for matured markets. Once a market is
// resolved its answer is immutable.
type Resolver struct {
	mu        sync.RWMutex
	authority common.Address
	markets   Markets
	answers   map[string]resolution // market -> final answer
	store     *Store                // nil = memory-only (tests)
}

// New creates a memory-only resolver.
func New(authority common.Address, markets Markets) *Resolver {
	return &Resolver{
		authority: authority,
		markets:   markets,
		answers:   make(map[string]resolution),
	}
}

// NewWithPath creates a resolver persisted to a Pebble database at dbPath.
// Previously recorded answers are reloaded eagerly: resolution state is tiny
// and immutable, so a full scan at startup is cheap.
func NewWithPath(authority common.Address, markets Markets, dbPath string) (*Resolver, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle store: %w", err)
	}

	r := New(authority, markets)
	r.store = store

	answers, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load resolutions: %w", err)
	}
	for id, answer := range answers {
		r.answers[id] = resolution{Answer: answer}
	}
	return r, nil
}

// Close closes the underlying database, if any.
func (r *Resolver) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// Resolve records the final answer for a market. Only the configured
// authority may resolve, only after maturity, and only once.
func (r *Resolver) Resolve(caller common.Address, marketID string, answer uint8) error {
	if caller != r.authority {
		return ErrNotAuthority
	}

	outcomes, err := r.markets.OutcomeCount(marketID)
	if err != nil {
		return err
	}
	if answer >= outcomes {
		return fmt.Errorf("answer %d out of range for %d outcomes", answer, outcomes)
	}

	mature, err := r.markets.IsMature(marketID)
	if err != nil {
		return err
	}
	if !mature {
		return fmt.Errorf("%w: %s", ErrNotMature, marketID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.answers[marketID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, marketID)
	}

	r.answers[marketID] = resolution{Answer: answer}
	if r.store != nil {
		return r.store.SaveAnswer(marketID, answer)
	}
	return nil
}

// IsResolved reports whether the market's answer cell has been written.
func (r *Resolver) IsResolved(marketID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.answers[marketID]
	return ok
}

// Answer returns the recorded final answer for a resolved market.
func (r *Resolver) Answer(marketID string) (uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.answers[marketID]
	if !ok {
		return 0, fmt.Errorf("market %s not resolved", marketID)
	}
	return res.Answer, nil
}

// Authority returns the configured resolution authority address.
func (r *Resolver) Authority() common.Address {
	return r.authority
}
