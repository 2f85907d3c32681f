package engine

import "errors"

// Every expected rejection path surfaces one of these sentinels so callers
// (the off-chain matcher, the API layer) can tell rejection reasons apart
// with errors.Is. None of them is retried internally.
var (
	// Authorization failures
	ErrUnauthorized = errors.New("caller not authorized")
	ErrPaused       = errors.New("engine is paused")

	// Validation failures
	ErrMarketMismatch   = errors.New("order market ids differ")
	ErrOutcomeMismatch  = errors.New("order outcomes differ")
	ErrInvalidOrderPair = errors.New("order pair must be one buy and one sell")
	ErrPriceNotCrossing = errors.New("buy price below sell price")
	ErrZeroFillAmount   = errors.New("fill amount must be positive")
	ErrOrderExpired     = errors.New("order expired")
	ErrInvalidSignature = errors.New("invalid order signature")

	// Capacity failures
	ErrOrderAmountExceeded = errors.New("fill would exceed order amount")

	// Lifecycle failures
	ErrMarketNotResolved = errors.New("market not resolved yet")
	ErrAnswerMismatch    = errors.New("outcome does not match recorded answer")
	ErrNoWinningBalance  = errors.New("caller holds no winning tokens")
)
