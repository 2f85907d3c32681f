// Package market is the registry of prediction markets: outcome count and
// deadline per market, plus the maturity predicate that gates resolution.
package market

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a market.
type Status int8

const (
	Active  Status = iota // Trading enabled
	Paused                // Trading halted (emergency)
	Settled               // Resolved and claimable
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	case Settled:
		return "Settled"
	default:
		return "Unknown"
	}
}

// Market defines one prediction market.
type Market struct {
	ID       string // Unique market identifier (e.g., "eth-above-5k-2026")
	Question string // Human-readable question the market resolves
	Outcomes uint8  // Number of outcomes, >= 2 (binary markets have 2)
	Deadline int64  // Unix seconds after which the market is mature; 0 = no deadline
	Status   Status
}

// NewMarket creates a market with validation.
func NewMarket(id, question string, outcomes uint8, deadline int64) (*Market, error) {
	m := &Market{
		ID:       id,
		Question: question,
		Outcomes: outcomes,
		Deadline: deadline,
		Status:   Active,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid market params: %w", err)
	}
	return m, nil
}

// Validate checks market parameter sanity.
func (m *Market) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("market id cannot be empty")
	}
	if m.Outcomes < 2 {
		return fmt.Errorf("market needs at least 2 outcomes, got %d", m.Outcomes)
	}
	if m.Deadline < 0 {
		return fmt.Errorf("deadline cannot be negative: %d", m.Deadline)
	}
	return nil
}

// IsMature reports whether the market's deadline has passed at the given time.
// Markets without a deadline are always mature.
func (m *Market) IsMature(now time.Time) bool {
	if m.Deadline == 0 {
		return true
	}
	return now.Unix() >= m.Deadline
}
