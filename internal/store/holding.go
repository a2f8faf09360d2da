package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mkovalev/folio/internal/domain"
)

// HoldingStore is a thread-safe in-memory holding store, one row per
// (account, symbol).
type HoldingStore struct {
	mu sync.RWMutex
	// accountID -> symbol -> holding
	holdings map[string]map[string]domain.Holding
}

// NewHoldingStore creates an empty HoldingStore.
func NewHoldingStore() *HoldingStore {
	return &HoldingStore{holdings: make(map[string]map[string]domain.Holding)}
}

// Get returns the holding for (accountID, symbol), or
// domain.ErrNoSuchHolding.
func (s *HoldingStore) Get(_ context.Context, accountID, symbol string) (domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[accountID][symbol]
	if !ok {
		return domain.Holding{}, domain.ErrNoSuchHolding
	}
	return h, nil
}

// ListByAccount returns the account's holdings with shares > 0, sorted by
// symbol. Zero-share rows are excluded from portfolio views.
func (s *HoldingStore) ListByAccount(_ context.Context, accountID string) ([]domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Holding
	for _, h := range s.holdings[accountID] {
		if h.Shares > 0 {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Upsert writes the holding if h.Version matches the stored row's version.
// A zero version creates the row, which must not exist yet. A stale version
// returns domain.ErrConflict; the caller re-reads and reapplies.
func (s *HoldingStore) Upsert(_ context.Context, h domain.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bysym, ok := s.holdings[h.AccountID]
	if !ok {
		bysym = make(map[string]domain.Holding)
		s.holdings[h.AccountID] = bysym
	}

	cur, exists := bysym[h.Symbol]
	if h.Version == 0 {
		if exists {
			return domain.ErrConflict
		}
	} else if !exists || cur.Version != h.Version {
		return domain.ErrConflict
	}

	h.Version++
	bysym[h.Symbol] = h
	return nil
}

// Remove deletes the row for (accountID, symbol) if version matches,
// returning domain.ErrConflict on a stale version. Removing an absent row
// is not an error.
func (s *HoldingStore) Remove(_ context.Context, accountID, symbol string, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.holdings[accountID][symbol]
	if !ok {
		return nil
	}
	if cur.Version != version {
		return domain.ErrConflict
	}
	delete(s.holdings[accountID], symbol)
	return nil
}
