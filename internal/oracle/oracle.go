// Package oracle provides current name/price quotes for instrument symbols.
// The oracle is trusted as given: no caching or consistency guarantees.
package oracle

import (
	"context"

	"github.com/mkovalev/folio/internal/domain"
)

// Oracle resolves a symbol to its current quote.
//
// Lookup returns domain.ErrUnknownSymbol when the source cleanly answers
// that the symbol does not exist, and domain.ErrPriceUnavailable when the
// source cannot be reached, times out, or answers garbage.
type Oracle interface {
	Lookup(ctx context.Context, symbol string) (domain.Quote, error)
}
