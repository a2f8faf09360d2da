// Command folio wires the ledger engine: configuration, structured logging,
// the store set (Postgres when a DSN is configured, otherwise WAL-backed
// in-memory stores) and the price oracle (HTTP quote API when configured,
// otherwise a static quote table).
//
// The caller-facing transport layer is intentionally absent; without one the
// binary runs a short scripted session against the engine, which doubles as
// a wiring smoke test.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mkovalev/folio/config"
	"github.com/mkovalev/folio/internal/domain"
	"github.com/mkovalev/folio/internal/ledger"
	"github.com/mkovalev/folio/internal/oracle"
	"github.com/mkovalev/folio/internal/store"
	"github.com/mkovalev/folio/internal/store/postgres"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		accounts ledger.AccountStore
		holdings ledger.HoldingStore
		txlog    ledger.TransactionLog
	)
	if cfg.PostgresDSN != "" {
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("open postgres stores", zap.Error(err))
		}
		defer pg.Close()
		accounts, holdings, txlog = pg.Accounts(), pg.Holdings(), pg.TransactionLog()
		logger.Info("using postgres store set")
	} else {
		wlog, err := store.OpenTransactionLog(cfg.WALDir)
		if err != nil {
			logger.Fatal("open transaction log", zap.Error(err))
		}
		defer wlog.Close()
		accounts, holdings, txlog = store.NewAccountStore(), store.NewHoldingStore(), wlog
		logger.Info("using in-memory store set", zap.String("wal_dir", cfg.WALDir))
	}

	var quotes oracle.Oracle
	if cfg.OracleURL != "" {
		quotes = oracle.NewHTTPOracle(cfg.OracleURL, cfg.OracleToken, cfg.OracleTimeout)
	} else {
		quotes = oracle.NewStaticOracle(
			domain.Quote{Symbol: "AAPL", Name: "Apple Inc", Price: decimal.NewFromInt(190)},
			domain.Quote{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.NewFromInt(410)},
			domain.Quote{Symbol: "NFLX", Name: "Netflix Inc", Price: decimal.NewFromInt(620)},
		)
		logger.Info("using static quote oracle")
	}

	svc := ledger.New(logger, accounts, holdings, txlog, quotes, cfg.ConflictRetries)
	if err := runSession(ctx, logger, svc); err != nil {
		logger.Fatal("session failed", zap.Error(err))
	}
}

// runSession exercises the full operation surface against one account.
func runSession(ctx context.Context, logger *zap.Logger, svc *ledger.Service) error {
	const accountID = "demo"

	if _, err := svc.CreateAccount(ctx, accountID); err != nil && !errors.Is(err, domain.ErrAccountExists) {
		return err
	}
	if err := svc.Deposit(ctx, accountID, decimal.NewFromInt(10000)); err != nil {
		return err
	}
	if err := svc.Buy(ctx, accountID, "AAPL", 10); err != nil {
		return err
	}
	if err := svc.Buy(ctx, accountID, "MSFT", 5); err != nil {
		return err
	}
	if err := svc.Sell(ctx, accountID, "AAPL", 4); err != nil {
		return err
	}

	view, err := svc.Portfolio(ctx, accountID)
	if err != nil {
		return err
	}
	for _, pos := range view.Positions {
		logger.Info("position",
			zap.String("symbol", pos.Symbol),
			zap.Int64("shares", pos.Shares),
			zap.String("live_value", pos.LiveValue.String()))
	}
	logger.Info("portfolio",
		zap.String("cash", view.Cash.String()),
		zap.String("net_worth", view.NetWorth.String()))

	history, err := svc.History(ctx, accountID)
	if err != nil {
		return err
	}
	logger.Info("history", zap.Int("records", len(history)))

	drifts, err := svc.VerifyHoldings(ctx, accountID)
	if err != nil {
		return err
	}
	logger.Info("holdings verified", zap.Int("drifts", len(drifts)))
	return nil
}
