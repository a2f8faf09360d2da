package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mkovalev/folio/internal/domain"
)

const defaultLookupTimeout = 5 * time.Second

// HTTPOracle fetches quotes from an IEX-style JSON API:
// GET {base}/stock/{symbol}/quote?token={token}.
type HTTPOracle struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPOracle creates an oracle backed by the quote API at baseURL.
// A zero timeout falls back to a 5s default.
func NewHTTPOracle(baseURL, token string, timeout time.Duration) *HTTPOracle {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type quoteResponse struct {
	Symbol      string      `json:"symbol"`
	CompanyName string      `json:"companyName"`
	LatestPrice json.Number `json:"latestPrice"`
}

// Lookup fetches the current quote for symbol. Symbols are trimmed and
// upper-cased here; the ledger never normalizes.
func (o *HTTPOracle) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, domain.ErrUnknownSymbol
	}

	u := fmt.Sprintf("%s/stock/%s/quote?token=%s", o.baseURL, url.PathEscape(symbol), url.QueryEscape(o.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Quote{}, errors.Wrap(domain.ErrPriceUnavailable, err.Error())
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.Quote{}, errors.Wrap(domain.ErrPriceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Quote{}, domain.ErrUnknownSymbol
	case resp.StatusCode != http.StatusOK:
		return domain.Quote{}, errors.Wrapf(domain.ErrPriceUnavailable, "quote API returned %s", resp.Status)
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return domain.Quote{}, errors.Wrap(domain.ErrPriceUnavailable, err.Error())
	}

	price, err := decimal.NewFromString(qr.LatestPrice.String())
	if err != nil {
		return domain.Quote{}, errors.Wrapf(domain.ErrPriceUnavailable, "bad price %q for %s", qr.LatestPrice.String(), symbol)
	}
	if qr.Symbol == "" {
		qr.Symbol = symbol
	}

	return domain.Quote{Symbol: qr.Symbol, Name: qr.CompanyName, Price: price}, nil
}
