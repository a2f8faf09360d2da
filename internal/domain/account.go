// Package domain defines the entities the ledger keeps consistent:
// accounts, holdings and the append-only transaction log.
package domain

import "github.com/shopspring/decimal"

// Account holds the cash balance of one user. Cash never goes negative;
// the ledger enforces that before every committed mutation.
type Account struct {
	ID   string
	Cash decimal.Decimal
	// Version increments on every committed cash mutation and backs the
	// store's compare-and-update primitive.
	Version uint64
}
