// Package position is the outcome-token ledger. Tokens are identified by a
// deterministic hash of (market, outcome); balances are tracked per
// (user, tokenId). The ledger only does bookkeeping - collateral conservation
// is enforced procedurally by the settlement engine, not here.
package position

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInsufficientTokens means a burn asked for more than the holder's balance.
var ErrInsufficientTokens = errors.New("insufficient token balance")

// TokenID derives the outcome-token identifier for (market, outcome).
// keccak256 over a fixed prefix keeps ids collision-resistant across markets
// and outcome indexes.
func TokenID(market string, outcome uint8) common.Hash {
	return crypto.Keccak256Hash([]byte("settlex/outcome-token"), []byte(market), []byte{outcome})
}

type balanceKey struct {
	user  common.Address
	token common.Hash
}

// Ledger tracks per-(user, tokenId) outcome-token balances.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]int64
	store    *Store // nil = memory-only (tests)
}

// New creates a memory-only ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[balanceKey]int64)}
}

// NewWithPath creates a ledger persisted to a Pebble database at dbPath.
func NewWithPath(dbPath string) (*Ledger, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create position store: %w", err)
	}
	l := New()
	l.store = store
	return l, nil
}

// Close closes the underlying database, if any.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func (l *Ledger) balanceLocked(user common.Address, token common.Hash) int64 {
	key := balanceKey{user, token}
	if bal, ok := l.balances[key]; ok {
		return bal
	}
	var bal int64
	if l.store != nil {
		bal = l.store.LoadBalance(user, token)
	}
	l.balances[key] = bal
	return bal
}

func (l *Ledger) persistLocked(user common.Address, token common.Hash) error {
	if l.store == nil {
		return nil
	}
	return l.store.SaveBalance(user, token, l.balances[balanceKey{user, token}])
}

// Mint credits amount of token to user.
func (l *Ledger) Mint(user common.Address, token common.Hash, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[balanceKey{user, token}] = l.balanceLocked(user, token) + amount
	return l.persistLocked(user, token)
}

// MintBatch credits amounts[i] of tokens[i] to user. Fails before mutating
// anything if the slices are malformed.
func (l *Ledger) MintBatch(user common.Address, tokens []common.Hash, amounts []int64) error {
	if len(tokens) != len(amounts) {
		return fmt.Errorf("token/amount length mismatch: %d vs %d", len(tokens), len(amounts))
	}
	for _, amount := range amounts {
		if amount <= 0 {
			return fmt.Errorf("mint amount must be positive: %d", amount)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, token := range tokens {
		l.balances[balanceKey{user, token}] = l.balanceLocked(user, token) + amounts[i]
		if err := l.persistLocked(user, token); err != nil {
			return err
		}
	}
	return nil
}

// Burn debits amount of token from user. Fails if the balance is short.
func (l *Ledger) Burn(user common.Address, token common.Hash, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("burn amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(user, token)
	if bal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientTokens, bal, amount)
	}

	l.balances[balanceKey{user, token}] = bal - amount
	return l.persistLocked(user, token)
}

// BurnBatch debits amounts[i] of tokens[i] from user. All balances are
// checked before any is mutated.
func (l *Ledger) BurnBatch(user common.Address, tokens []common.Hash, amounts []int64) error {
	if len(tokens) != len(amounts) {
		return fmt.Errorf("token/amount length mismatch: %d vs %d", len(tokens), len(amounts))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, token := range tokens {
		if amounts[i] <= 0 {
			return fmt.Errorf("burn amount must be positive: %d", amounts[i])
		}
		if bal := l.balanceLocked(user, token); bal < amounts[i] {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientTokens, bal, amounts[i])
		}
	}

	for i, token := range tokens {
		l.balances[balanceKey{user, token}] -= amounts[i]
		if err := l.persistLocked(user, token); err != nil {
			return err
		}
	}
	return nil
}

// BalanceOf returns user's balance of token.
func (l *Ledger) BalanceOf(user common.Address, token common.Hash) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(user, token)
}
