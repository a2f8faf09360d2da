// Package store holds the in-memory persistence layer: accounts, holdings
// and the WAL-backed transaction log. Stores carry no business rules; every
// validation lives in the ledger.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mkovalev/folio/internal/domain"
)

// AccountStore is a thread-safe in-memory account store keyed by account id.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]domain.Account)}
}

// Create adds an account with zero cash balance. Returns
// domain.ErrAccountExists if the id is taken.
func (s *AccountStore) Create(_ context.Context, id string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; ok {
		return domain.Account{}, domain.ErrAccountExists
	}
	acct := domain.Account{ID: id, Cash: decimal.Zero}
	s.accounts[id] = acct
	return acct, nil
}

// Get returns a snapshot of the account, or domain.ErrAccountNotFound.
func (s *AccountStore) Get(_ context.Context, id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acct, nil
}

// CompareAndSetCash replaces the cash balance if the stored version still
// matches the one the caller read. A stale version fails with
// domain.ErrConflict and leaves the account untouched.
func (s *AccountStore) CompareAndSetCash(_ context.Context, id string, version uint64, cash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if acct.Version != version {
		return domain.ErrConflict
	}
	acct.Cash = cash
	acct.Version++
	s.accounts[id] = acct
	return nil
}
