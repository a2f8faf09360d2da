package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Position is one row of a portfolio view, valued at the live oracle price
// rather than the price persisted at trade time.
type Position struct {
	Symbol    string
	Name      string
	Shares    int64
	LivePrice decimal.Decimal
	LiveValue decimal.Decimal
}

// PortfolioView is a derived, display-only valuation of an account. It is
// recomputed from the oracle on every call; two calls may legitimately
// disagree when the live price moved in between.
type PortfolioView struct {
	AccountID string
	Cash      decimal.Decimal
	Positions []Position
	NetWorth  decimal.Decimal
}

// Drift reports a holding whose share count disagrees with the transaction
// log, which is the source of truth.
type Drift struct {
	Symbol        string
	HoldingShares int64
	LogShares     int64
}

// Portfolio values the account's current holdings at live oracle prices.
// Cash and holdings are snapshotted under the account's read lock so an
// in-flight mutation is never half-visible; oracle calls happen after the
// lock is released. The view never writes back to any store.
func (s *Service) Portfolio(ctx context.Context, accountID string) (PortfolioView, error) {
	lk := s.lockFor(accountID)
	lk.RLock()
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		lk.RUnlock()
		return PortfolioView{}, err
	}
	holdings, err := s.holdings.ListByAccount(ctx, accountID)
	lk.RUnlock()
	if err != nil {
		return PortfolioView{}, err
	}

	view := PortfolioView{
		AccountID: accountID,
		Cash:      acct.Cash,
		NetWorth:  acct.Cash,
		Positions: make([]Position, 0, len(holdings)),
	}
	for _, h := range holdings {
		quote, err := s.lookup(ctx, h.Symbol)
		if err != nil {
			return PortfolioView{}, err
		}
		value := quote.Price.Mul(decimal.NewFromInt(h.Shares))
		view.Positions = append(view.Positions, Position{
			Symbol:    h.Symbol,
			Name:      h.Name,
			Shares:    h.Shares,
			LivePrice: quote.Price,
			LiveValue: value,
		})
		view.NetWorth = view.NetWorth.Add(value)
	}
	return view, nil
}

// VerifyHoldings checks every holding of the account against the sum of
// signed shares in the transaction log and returns the symbols that drifted.
// An empty result means the materialized aggregate is consistent.
func (s *Service) VerifyHoldings(ctx context.Context, accountID string) ([]Drift, error) {
	lk := s.lockFor(accountID)
	lk.RLock()
	defer lk.RUnlock()

	holdings, err := s.holdings.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	recs, err := s.log.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	logShares := make(map[string]int64)
	for _, rec := range recs {
		if !rec.IsDeposit() {
			logShares[rec.Symbol] += rec.Shares
		}
	}

	var drifts []Drift
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		seen[h.Symbol] = true
		if h.Shares != logShares[h.Symbol] {
			drifts = append(drifts, Drift{Symbol: h.Symbol, HoldingShares: h.Shares, LogShares: logShares[h.Symbol]})
		}
	}
	for symbol, sum := range logShares {
		if !seen[symbol] && sum != 0 {
			drifts = append(drifts, Drift{Symbol: symbol, LogShares: sum})
		}
	}

	if len(drifts) > 0 {
		s.l.Warn("holdings drifted from transaction log",
			zap.String("account", accountID),
			zap.Int("symbols", len(drifts)))
	}
	return drifts, nil
}
