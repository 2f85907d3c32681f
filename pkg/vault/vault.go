// Package vault is the collateral escrow ledger: per-user available balances
// plus a per-market locked pool. The settlement engine is the only writer of
// lock/release/transfer; deposits and withdrawals are user self-service.
package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance means an operation asked for more than the
	// user's available (unlocked) balance.
	ErrInsufficientBalance = errors.New("insufficient available balance")

	// ErrInsufficientLocked means a release asked for more than the
	// market's locked pool holds.
	ErrInsufficientLocked = errors.New("insufficient locked collateral")
)

// Vault tracks collateral in two states: available (withdrawable, per user)
// and locked (per market, aggregate). All amounts are integer collateral
// units; nothing in here may ever go negative.
type Vault struct {
	mu        sync.RWMutex
	available map[common.Address]int64 // user -> withdrawable balance
	locked    map[string]int64         // market -> locked pool total
	store     *Store                   // nil = memory-only (tests)
}

// New creates a memory-only vault.
func New() *Vault {
	return &Vault{
		available: make(map[common.Address]int64),
		locked:    make(map[string]int64),
	}
}

// NewWithPath creates a vault persisted to a Pebble database at dbPath.
// Existing balances are loaded lazily on first access.
func NewWithPath(dbPath string) (*Vault, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault store: %w", err)
	}
	v := New()
	v.store = store
	return v, nil
}

// Close closes the underlying database, if any.
func (v *Vault) Close() error {
	if v.store == nil {
		return nil
	}
	return v.store.Close()
}

// availableLocked returns the user's available balance, loading from the
// store on first access. Caller must hold v.mu.
func (v *Vault) availableLocked(user common.Address) int64 {
	if bal, ok := v.available[user]; ok {
		return bal
	}
	var bal int64
	if v.store != nil {
		bal = v.store.LoadAvailable(user)
	}
	v.available[user] = bal
	return bal
}

// lockedPoolLocked returns the market's locked total, loading from the store
// on first access. Caller must hold v.mu.
func (v *Vault) lockedPoolLocked(market string) int64 {
	if pool, ok := v.locked[market]; ok {
		return pool
	}
	var pool int64
	if v.store != nil {
		pool = v.store.LoadLocked(market)
	}
	v.locked[market] = pool
	return pool
}

func (v *Vault) persistAvailable(user common.Address) error {
	if v.store == nil {
		return nil
	}
	return v.store.SaveAvailable(user, v.available[user])
}

func (v *Vault) persistLocked(market string) error {
	if v.store == nil {
		return nil
	}
	return v.store.SaveLocked(market, v.locked[market])
}

// Deposit credits collateral to a user's available balance.
func (v *Vault) Deposit(user common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.available[user] = v.availableLocked(user) + amount
	return v.persistAvailable(user)
}

// Withdraw debits collateral from a user's available balance.
// Locked collateral is never withdrawable.
func (v *Vault) Withdraw(user common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw amount must be positive: %d", amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	bal := v.availableLocked(user)
	if bal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, bal, amount)
	}

	v.available[user] = bal - amount
	return v.persistAvailable(user)
}

// Lock moves amount from the user's available balance into the market's
// locked pool.
func (v *Vault) Lock(market string, user common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("lock amount cannot be negative: %d", amount)
	}
	if amount == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	bal := v.availableLocked(user)
	if bal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, bal, amount)
	}

	v.available[user] = bal - amount
	v.locked[market] = v.lockedPoolLocked(market) + amount

	if err := v.persistAvailable(user); err != nil {
		return err
	}
	return v.persistLocked(market)
}

// Release moves amount from the market's locked pool back to the user's
// available balance. The pool can only shrink through releases, so the sum of
// releases can never exceed the sum of prior locks.
func (v *Vault) Release(market string, user common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("release amount cannot be negative: %d", amount)
	}
	if amount == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	pool := v.lockedPoolLocked(market)
	if pool < amount {
		return fmt.Errorf("%w: pool %d, need %d", ErrInsufficientLocked, pool, amount)
	}

	v.locked[market] = pool - amount
	v.available[user] = v.availableLocked(user) + amount

	if err := v.persistLocked(market); err != nil {
		return err
	}
	return v.persistAvailable(user)
}

// LockTrade escrows both sides of a fill and collects both trading fees in
// one critical section: each maker's lock moves into the market pool and the
// fees move to feeRecipient, or nothing moves at all. Deposits and
// withdrawals race against settlement, so the whole movement has to be
// atomic under the vault mutex — partial escrow is never observable.
func (v *Vault) LockTrade(market string, buyer, seller, feeRecipient common.Address, buyerLock, buyerFee, sellerLock, sellerFee int64) error {
	for _, amt := range []int64{buyerLock, buyerFee, sellerLock, sellerFee} {
		if amt < 0 {
			return fmt.Errorf("trade amount cannot be negative: %d", amt)
		}
	}
	totalFee := buyerFee + sellerFee
	if totalFee > 0 && feeRecipient == (common.Address{}) {
		return fmt.Errorf("fee without a fee recipient")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	buyerNeed := buyerLock + buyerFee
	sellerNeed := sellerLock + sellerFee
	if buyer == seller {
		// Self-cross: one balance funds both sides.
		if bal := v.availableLocked(buyer); bal < buyerNeed+sellerNeed {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, bal, buyerNeed+sellerNeed)
		}
	} else {
		if bal := v.availableLocked(buyer); bal < buyerNeed {
			return fmt.Errorf("%w: buyer has %d, needs %d", ErrInsufficientBalance, bal, buyerNeed)
		}
		if bal := v.availableLocked(seller); bal < sellerNeed {
			return fmt.Errorf("%w: seller has %d, needs %d", ErrInsufficientBalance, bal, sellerNeed)
		}
	}

	v.available[buyer] -= buyerNeed
	v.available[seller] -= sellerNeed
	v.locked[market] = v.lockedPoolLocked(market) + buyerLock + sellerLock
	if totalFee > 0 {
		v.available[feeRecipient] = v.availableLocked(feeRecipient) + totalFee
	}

	if err := v.persistAvailable(buyer); err != nil {
		return err
	}
	if buyer != seller {
		if err := v.persistAvailable(seller); err != nil {
			return err
		}
	}
	if totalFee > 0 {
		if err := v.persistAvailable(feeRecipient); err != nil {
			return err
		}
	}
	return v.persistLocked(market)
}

// ReleaseWithFee moves amount from the market's locked pool and splits it in
// one critical section: amount-fee to the user, fee to feeRecipient. The fee
// never touches the user's available balance, so a racing withdrawal cannot
// strand a payout half-applied.
func (v *Vault) ReleaseWithFee(market string, user common.Address, amount, fee int64, feeRecipient common.Address) error {
	if amount <= 0 {
		return fmt.Errorf("release amount must be positive: %d", amount)
	}
	if fee < 0 || fee > amount {
		return fmt.Errorf("fee %d out of range [0, %d]", fee, amount)
	}
	if fee > 0 && feeRecipient == (common.Address{}) {
		return fmt.Errorf("fee without a fee recipient")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	pool := v.lockedPoolLocked(market)
	if pool < amount {
		return fmt.Errorf("%w: pool %d, need %d", ErrInsufficientLocked, pool, amount)
	}

	v.locked[market] = pool - amount
	v.available[user] = v.availableLocked(user) + amount - fee
	if fee > 0 {
		v.available[feeRecipient] = v.availableLocked(feeRecipient) + fee
	}

	if err := v.persistLocked(market); err != nil {
		return err
	}
	if err := v.persistAvailable(user); err != nil {
		return err
	}
	if fee > 0 {
		return v.persistAvailable(feeRecipient)
	}
	return nil
}

// Transfer moves amount between two users' available balances.
// Used for fee collection; not a lock.
func (v *Vault) Transfer(from, to common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}
	if amount == 0 || from == to {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	bal := v.availableLocked(from)
	if bal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, bal, amount)
	}

	v.available[from] = bal - amount
	v.available[to] = v.availableLocked(to) + amount

	if err := v.persistAvailable(from); err != nil {
		return err
	}
	return v.persistAvailable(to)
}

// AvailableOf returns a user's available balance.
func (v *Vault) AvailableOf(user common.Address) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.availableLocked(user)
}

// LockedTotal returns a market's locked pool total.
func (v *Vault) LockedTotal(market string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lockedPoolLocked(market)
}
