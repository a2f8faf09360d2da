package oracle

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mkovalev/folio/internal/domain"
)

// StaticOracle serves quotes from a fixed in-memory table. Used by the
// simulation mode and by tests; prices can be moved between lookups.
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	// err, when set, is returned by every Lookup. Lets tests simulate an
	// unreachable price source.
	err error
}

// NewStaticOracle creates an oracle preloaded with the given quotes.
func NewStaticOracle(quotes ...domain.Quote) *StaticOracle {
	o := &StaticOracle{quotes: make(map[string]domain.Quote, len(quotes))}
	for _, q := range quotes {
		o.quotes[strings.ToUpper(q.Symbol)] = q
	}
	return o
}

// Lookup returns the stored quote for symbol.
func (o *StaticOracle) Lookup(_ context.Context, symbol string) (domain.Quote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.err != nil {
		return domain.Quote{}, o.err
	}
	q, ok := o.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return domain.Quote{}, domain.ErrUnknownSymbol
	}
	return q, nil
}

// SetPrice moves the price of an already known symbol, or registers a new
// symbol with the given price.
func (o *StaticOracle) SetPrice(symbol string, price decimal.Decimal) {
	symbol = strings.ToUpper(symbol)

	o.mu.Lock()
	defer o.mu.Unlock()

	q, ok := o.quotes[symbol]
	if !ok {
		q = domain.Quote{Symbol: symbol, Name: symbol}
	}
	q.Price = price
	o.quotes[symbol] = q
}

// Fail makes every subsequent Lookup return err. Pass nil to recover.
func (o *StaticOracle) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}
