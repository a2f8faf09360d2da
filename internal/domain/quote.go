package domain

import "github.com/shopspring/decimal"

// Quote is the price oracle's answer for one symbol. The oracle owns symbol
// normalization; the ledger takes the quoted symbol as canonical.
type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}
