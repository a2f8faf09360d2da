package domain

import "github.com/pkg/errors"

// Business rule failures returned by the ledger. The caller-facing layer
// maps these to its own response codes; nothing here is retried except
// ErrConflict, which the ledger retries a bounded number of times itself.
var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoSuchHolding      = errors.New("no holding for symbol")
	ErrPriceUnavailable   = errors.New("price unavailable")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
)

// Infrastructure failures.
var (
	// ErrConflict signals a lost compare-and-update race. Safe to retry.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrStorageFailure wraps storage-layer faults. Fatal for the operation.
	ErrStorageFailure = errors.New("storage failure")
)
