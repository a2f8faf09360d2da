package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkovalev/folio/internal/domain"
	"github.com/mkovalev/folio/internal/oracle"
	"github.com/mkovalev/folio/internal/store"
)

type fixture struct {
	svc      *Service
	accounts *store.AccountStore
	holdings *store.HoldingStore
	log      *store.TransactionLog
	oracle   *oracle.StaticOracle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	o := oracle.NewStaticOracle(
		domain.Quote{Symbol: "AAPL", Name: "Apple Inc", Price: decimal.NewFromInt(50)},
		domain.Quote{Symbol: "NFLX", Name: "Netflix Inc", Price: decimal.NewFromInt(25)},
	)

	txlog, err := store.OpenTransactionLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { txlog.Close() })

	accounts := store.NewAccountStore()
	holdings := store.NewHoldingStore()
	return &fixture{
		svc:      New(zap.NewNop(), accounts, holdings, txlog, o, 3),
		accounts: accounts,
		holdings: holdings,
		log:      txlog,
		oracle:   o,
	}
}

func (f *fixture) fundedAccount(t *testing.T, id string, cash int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.CreateAccount(ctx, id)
	require.NoError(t, err)
	if cash > 0 {
		require.NoError(t, f.svc.Deposit(ctx, id, decimal.NewFromInt(cash)))
	}
}

func (f *fixture) cash(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acct, err := f.accounts.Get(context.Background(), id)
	require.NoError(t, err)
	return acct.Cash
}

func requireDecimal(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.NewFromInt(expected).Equal(actual),
		"expected %d, got %s", expected, actual)
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 0)

	require.NoError(t, f.svc.Deposit(ctx, "alice", decimal.NewFromInt(1000)))
	requireDecimal(t, 1000, f.cash(t, "alice"))

	// A deposit appends a symbol-less audit record.
	history, err := f.svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].IsDeposit())
	require.Equal(t, int64(0), history[0].Shares)
	requireDecimal(t, 1000, history[0].Price)
}

func TestDeposit_InvalidAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 0)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		err := f.svc.Deposit(ctx, "alice", amount)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
	requireDecimal(t, 0, f.cash(t, "alice"))
}

func TestDeposit_AccountNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Deposit(context.Background(), "ghost", decimal.NewFromInt(100))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

// Scenario: cash=1000, buy 10 shares at price=50.
func TestBuy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)

	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 10))

	requireDecimal(t, 500, f.cash(t, "alice"))

	h, err := f.holdings.Get(ctx, "alice", "AAPL")
	require.NoError(t, err)
	require.Equal(t, int64(10), h.Shares)
	require.Equal(t, "Apple Inc", h.Name)
	requireDecimal(t, 50, h.LastPrice)
	requireDecimal(t, 500, h.LastValue)

	history, err := f.svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 2) // deposit + buy, most recent first
	require.Equal(t, "AAPL", history[0].Symbol)
	require.Equal(t, int64(10), history[0].Shares)
	requireDecimal(t, 50, history[0].Price)
}

func TestBuy_AccumulatesAndOverwritesPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 2000)

	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 10))
	f.oracle.SetPrice("AAPL", decimal.NewFromInt(60))
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 5))

	h, err := f.holdings.Get(ctx, "alice", "AAPL")
	require.NoError(t, err)
	require.Equal(t, int64(15), h.Shares)
	// The stored price is the latest trade price, not an average cost.
	requireDecimal(t, 60, h.LastPrice)
	requireDecimal(t, 900, h.LastValue)
	requireDecimal(t, 1200, f.cash(t, "alice"))
}

// Scenario: cash=100, buy 10 shares at price=50 (cost=500) fails and leaves
// no trace.
func TestBuy_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 100)

	err := f.svc.Buy(ctx, "alice", "AAPL", 10)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	requireDecimal(t, 100, f.cash(t, "alice"))
	_, err = f.holdings.Get(ctx, "alice", "AAPL")
	require.ErrorIs(t, err, domain.ErrNoSuchHolding)

	history, err := f.svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1) // only the deposit
}

func TestBuy_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)

	require.ErrorIs(t, f.svc.Buy(ctx, "alice", "AAPL", 0), domain.ErrInvalidQuantity)
	require.ErrorIs(t, f.svc.Buy(ctx, "alice", "AAPL", -3), domain.ErrInvalidQuantity)
	require.ErrorIs(t, f.svc.Buy(ctx, "alice", "NOPE", 1), domain.ErrUnknownSymbol)
	requireDecimal(t, 1000, f.cash(t, "alice"))
}

func TestBuy_PriceUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)

	f.oracle.Fail(domain.ErrPriceUnavailable)
	err := f.svc.Buy(ctx, "alice", "AAPL", 1)
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
	requireDecimal(t, 1000, f.cash(t, "alice"))
}

// Scenario: after buying 10 at 50, sell 4 at 60.
func TestSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 10))

	f.oracle.SetPrice("AAPL", decimal.NewFromInt(60))
	require.NoError(t, f.svc.Sell(ctx, "alice", "AAPL", 4))

	requireDecimal(t, 740, f.cash(t, "alice"))

	h, err := f.holdings.Get(ctx, "alice", "AAPL")
	require.NoError(t, err)
	require.Equal(t, int64(6), h.Shares)
	requireDecimal(t, 60, h.LastPrice)
	requireDecimal(t, 360, h.LastValue)

	history, err := f.svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(-4), history[0].Shares)
	requireDecimal(t, 60, history[0].Price)
}

func TestSell_FullLiquidationRemovesHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 10))

	require.NoError(t, f.svc.Sell(ctx, "alice", "AAPL", 10))

	_, err := f.holdings.Get(ctx, "alice", "AAPL")
	require.ErrorIs(t, err, domain.ErrNoSuchHolding)

	view, err := f.svc.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, view.Positions)
}

// Scenario: holding has 5 shares, selling 6 fails and leaves state intact.
func TestSell_InsufficientShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 5))
	cashBefore := f.cash(t, "alice")

	err := f.svc.Sell(ctx, "alice", "AAPL", 6)
	require.ErrorIs(t, err, domain.ErrInsufficientShares)

	require.True(t, cashBefore.Equal(f.cash(t, "alice")))
	h, err := f.holdings.Get(ctx, "alice", "AAPL")
	require.NoError(t, err)
	require.Equal(t, int64(5), h.Shares)
}

func TestSell_NoSuchHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)

	err := f.svc.Sell(ctx, "alice", "AAPL", 1)
	require.ErrorIs(t, err, domain.ErrNoSuchHolding)
}

// Buying q shares and selling q shares at the same price returns cash to
// its pre-buy value exactly.
func TestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1234)

	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 7))
	require.NoError(t, f.svc.Sell(ctx, "alice", "AAPL", 7))

	requireDecimal(t, 1234, f.cash(t, "alice"))
}

func TestPortfolio_LiveValuation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 10))

	// The persisted LastValue stays at the trade price; the view follows
	// the live price.
	f.oracle.SetPrice("AAPL", decimal.NewFromInt(80))

	view, err := f.svc.Portfolio(ctx, "alice")
	require.NoError(t, err)
	requireDecimal(t, 500, view.Cash)
	require.Len(t, view.Positions, 1)
	requireDecimal(t, 80, view.Positions[0].LivePrice)
	requireDecimal(t, 800, view.Positions[0].LiveValue)
	requireDecimal(t, 1300, view.NetWorth)

	h, err := f.holdings.Get(ctx, "alice", "AAPL")
	require.NoError(t, err)
	requireDecimal(t, 50, h.LastPrice)
}

func TestPortfolio_ReadsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 3))
	require.NoError(t, f.svc.Buy(ctx, "alice", "NFLX", 2))

	first, err := f.svc.Portfolio(ctx, "alice")
	require.NoError(t, err)
	second, err := f.svc.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestPortfolio_PriceUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 1))

	f.oracle.Fail(domain.ErrPriceUnavailable)
	_, err := f.svc.Portfolio(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestHistory_MostRecentFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 2))
	require.NoError(t, f.svc.Buy(ctx, "alice", "NFLX", 1))
	require.NoError(t, f.svc.Sell(ctx, "alice", "AAPL", 1))

	history, err := f.svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 4)
	require.Equal(t, int64(-1), history[0].Shares)
	require.Equal(t, "NFLX", history[1].Symbol)
	require.Equal(t, "AAPL", history[2].Symbol)
	require.True(t, history[3].IsDeposit())
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, "aapl")
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	requireDecimal(t, 50, q.Price)

	_, err = f.svc.Quote(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestVerifyHoldings_Consistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 10))
	require.NoError(t, f.svc.Sell(ctx, "alice", "AAPL", 4))

	drifts, err := f.svc.VerifyHoldings(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestVerifyHoldings_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fundedAccount(t, "alice", 1000)
	require.NoError(t, f.svc.Buy(ctx, "alice", "AAPL", 10))

	// Corrupt the materialized aggregate behind the ledger's back.
	h, err := f.holdings.Get(ctx, "alice", "AAPL")
	require.NoError(t, err)
	h.Shares = 7
	require.NoError(t, f.holdings.Upsert(ctx, h))

	drifts, err := f.svc.VerifyHoldings(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, "AAPL", drifts[0].Symbol)
	require.Equal(t, int64(7), drifts[0].HoldingShares)
	require.Equal(t, int64(10), drifts[0].LogShares)
}
