package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one immutable audit entry: a buy, a sell, or a cash
// deposit. Records are never modified or deleted once appended.
type TransactionRecord struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	// Symbol is empty for pure cash deposits.
	Symbol string `json:"symbol,omitempty"`
	// Shares is signed: positive for a buy, negative for a sell,
	// zero for a deposit.
	Shares int64 `json:"shares"`
	// Price is the per-share execution price, or the deposited amount
	// when the record is a deposit.
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// IsDeposit reports whether the record is a pure cash deposit.
func (r *TransactionRecord) IsDeposit() bool {
	return r.Symbol == ""
}
