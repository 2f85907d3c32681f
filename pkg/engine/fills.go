package engine

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// FillLedger maps order fingerprints to cumulative filled amounts.
// Filled amounts are monotonically non-decreasing and never exceed the
// order's declared amount; entries are created on first fill or cancel and
// never deleted. It is the sole replay defence: once filled == amount the
// fingerprint is spent forever.
type FillLedger struct {
	mu     sync.Mutex
	filled map[Fingerprint]int64
	db     *pebble.DB // nil = memory-only (tests)
}

// NewFillLedger creates a memory-only fill ledger.
func NewFillLedger() *FillLedger {
	return &FillLedger{filled: make(map[Fingerprint]int64)}
}

// NewFillLedgerWithPath creates a fill ledger persisted to a Pebble database
// at dbPath.
func NewFillLedgerWithPath(dbPath string) (*FillLedger, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	l := NewFillLedger()
	l.db = db
	return l, nil
}

// Close closes the underlying database, if any.
func (l *FillLedger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// key: f:<32-byte-fingerprint>
func kFill(fp Fingerprint) []byte { return append([]byte("f:"), fp[:]...) }

func (l *FillLedger) filledLocked(fp Fingerprint) int64 {
	if v, ok := l.filled[fp]; ok {
		return v
	}
	var v int64
	if l.db != nil {
		if data, closer, err := l.db.Get(kFill(fp)); err == nil {
			if len(data) == 8 {
				v = int64(binary.BigEndian.Uint64(data))
			}
			closer.Close()
		}
	}
	l.filled[fp] = v
	return v
}

func (l *FillLedger) persistLocked(fp Fingerprint, amount int64) error {
	if l.db == nil {
		return nil
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(amount))
	if err := l.db.Set(kFill(fp), b[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save fill: %w", err)
	}
	return nil
}

// Filled returns the cumulative filled amount for a fingerprint.
func (l *FillLedger) Filled(fp Fingerprint) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filledLocked(fp)
}

// Fill increases the fingerprint's filled amount by delta. The read and the
// increment are a single atomic step under the ledger mutex; a concurrent
// fill that would push past max fails with ErrOrderAmountExceeded.
func (l *FillLedger) Fill(fp Fingerprint, delta, max int64) error {
	if delta <= 0 {
		return fmt.Errorf("fill delta must be positive: %d", delta)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.filledLocked(fp)
	if cur+delta > max {
		return fmt.Errorf("%w: filled %d + %d > %d", ErrOrderAmountExceeded, cur, delta, max)
	}

	// Durable state is written before the in-memory map so a failed write
	// leaves both views agreeing on the old value.
	if err := l.persistLocked(fp, cur+delta); err != nil {
		return err
	}
	l.filled[fp] = cur + delta
	return nil
}

// Exhaust sets the fingerprint's filled amount to max in one step,
// blocking all future fills. A second exhaust, like any fill against a
// spent fingerprint, fails through the same overflow check.
func (l *FillLedger) Exhaust(fp Fingerprint, max int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.filledLocked(fp)
	if cur >= max {
		return fmt.Errorf("%w: filled %d of %d", ErrOrderAmountExceeded, cur, max)
	}

	if err := l.persistLocked(fp, max); err != nil {
		return err
	}
	l.filled[fp] = max
	return nil
}
