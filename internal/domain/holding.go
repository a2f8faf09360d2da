package domain

import "github.com/shopspring/decimal"

// Holding is an account's position in one symbol. It is a materialized
// aggregate of the transaction log: Shares always equals the sum of signed
// shares over the log for this (account, symbol) pair.
type Holding struct {
	AccountID string
	Symbol    string
	Name      string
	Shares    int64
	// Version guards compare-and-update writes to this row. Zero means the
	// row has not been persisted yet.
	Version uint64
	// LastPrice is the price observed at the most recent buy or sell of
	// this holding, not the live market price.
	LastPrice decimal.Decimal
	LastValue decimal.Decimal
}

// Revalue sets LastPrice to the given trade price and recomputes LastValue
// from the current share count.
func (h *Holding) Revalue(price decimal.Decimal) {
	h.LastPrice = price
	h.LastValue = price.Mul(decimal.NewFromInt(h.Shares))
}
