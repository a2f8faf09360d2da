// Package ledger is the only component with business-rule authority over
// cash and holdings. Every mutation of account state passes through the
// Service, which keeps the cash balance, per-symbol holdings and the
// append-only transaction log mutually consistent.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mkovalev/folio/internal/domain"
	"github.com/mkovalev/folio/internal/oracle"
	"github.com/mkovalev/folio/pkg/retrier"
)

// AccountStore reads and compare-and-updates cash balances.
type AccountStore interface {
	Create(ctx context.Context, id string) (domain.Account, error)
	Get(ctx context.Context, id string) (domain.Account, error)
	CompareAndSetCash(ctx context.Context, id string, version uint64, cash decimal.Decimal) error
}

// HoldingStore reads and compare-and-updates per-symbol positions. Upsert
// and Remove return domain.ErrConflict when the holding's version is stale.
type HoldingStore interface {
	Get(ctx context.Context, accountID, symbol string) (domain.Holding, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Holding, error)
	Upsert(ctx context.Context, h domain.Holding) error
	Remove(ctx context.Context, accountID, symbol string, version uint64) error
}

// TransactionLog appends and reads immutable audit records.
type TransactionLog interface {
	Append(ctx context.Context, rec domain.TransactionRecord) error
	ListByAccount(ctx context.Context, accountID string) ([]domain.TransactionRecord, error)
}

// Service orchestrates the stores and the price oracle.
//
// Mutations for one account are serialized by a per-account lock, so two
// simultaneous buys cannot both read the same stale balance. Different
// accounts share nothing and proceed in parallel. On top of that both the
// account and holding stores compare-and-update on a version, which catches
// races between Service instances sharing one store set; a lost race is
// retried transparently within a small budget before surfacing as
// domain.ErrConflict.
type Service struct {
	accounts AccountStore
	holdings HoldingStore
	log      TransactionLog
	oracle   oracle.Oracle
	retry    *retrier.Retrier
	l        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// New creates a ledger Service. conflictRetries bounds the transparent
// retry budget for compare-and-update conflicts; values below zero fall
// back to the default.
func New(l *zap.Logger, accounts AccountStore, holdings HoldingStore, log TransactionLog, o oracle.Oracle, conflictRetries int) *Service {
	opts := []retrier.Option{
		retrier.WithRetryIf(func(err error) bool { return errors.Is(err, domain.ErrConflict) }),
	}
	if conflictRetries >= 0 {
		opts = append(opts, retrier.WithMaxRetries(conflictRetries))
	}

	return &Service{
		accounts: accounts,
		holdings: holdings,
		log:      log,
		oracle:   o,
		retry:    retrier.New(opts...),
		l:        l,
		locks:    make(map[string]*sync.RWMutex),
	}
}

// lockFor returns the lock serializing operations on one account.
func (s *Service) lockFor(accountID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk, ok := s.locks[accountID]
	if !ok {
		lk = &sync.RWMutex{}
		s.locks[accountID] = lk
	}
	return lk
}

// CreateAccount registers an account with zero cash balance.
func (s *Service) CreateAccount(ctx context.Context, accountID string) (domain.Account, error) {
	acct, err := s.accounts.Create(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	s.l.Info("account created", zap.String("account", accountID))
	return acct, nil
}

// Deposit adds cash to the account and appends a symbol-less audit record.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}

	lk := s.lockFor(accountID)
	lk.Lock()
	defer lk.Unlock()

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if err := s.accounts.CompareAndSetCash(ctx, accountID, acct.Version, acct.Cash.Add(amount)); err != nil {
			return err
		}

		rec := newRecord(accountID, "", 0, amount)
		if err := s.log.Append(ctx, rec); err != nil {
			return s.revertCash(ctx, accountID, amount.Neg(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.l.Info("deposit executed",
		zap.String("account", accountID),
		zap.String("amount", amount.String()))
	return nil
}

// Buy purchases quantity shares of symbol at the oracle's current price.
// The oracle is consulted before the account lock is taken, so a slow price
// source never blocks other operations on the account.
func (s *Service) Buy(ctx context.Context, accountID, symbol string, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	quote, err := s.lookup(ctx, symbol)
	if err != nil {
		return err
	}
	cost := quote.Price.Mul(decimal.NewFromInt(quantity))

	lk := s.lockFor(accountID)
	lk.Lock()
	defer lk.Unlock()

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		// Funds are validated against the price actually used at commit
		// time, inside the retry loop, so a conflict retry re-checks
		// against the fresh balance.
		if cost.GreaterThan(acct.Cash) {
			return domain.ErrInsufficientFunds
		}

		if err := s.accounts.CompareAndSetCash(ctx, accountID, acct.Version, acct.Cash.Sub(cost)); err != nil {
			return err
		}

		rec := newRecord(accountID, quote.Symbol, quantity, quote.Price)
		if err := s.log.Append(ctx, rec); err != nil {
			return s.revertCash(ctx, accountID, cost, err)
		}

		if err := s.applyShares(ctx, accountID, quote, quantity); err != nil {
			// The record is already durable; the holding can be repaired
			// from the log (see VerifyHoldings).
			s.l.Error("holding update failed after log append",
				zap.String("account", accountID),
				zap.String("symbol", quote.Symbol),
				zap.Error(err))
			return errors.Wrap(domain.ErrStorageFailure, err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.l.Info("buy executed",
		zap.String("account", accountID),
		zap.String("symbol", quote.Symbol),
		zap.Int64("quantity", quantity),
		zap.String("price", quote.Price.String()))
	return nil
}

// Sell liquidates quantity shares of symbol at the oracle's current price.
func (s *Service) Sell(ctx context.Context, accountID, symbol string, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	quote, err := s.lookup(ctx, symbol)
	if err != nil {
		return err
	}
	proceeds := quote.Price.Mul(decimal.NewFromInt(quantity))

	lk := s.lockFor(accountID)
	lk.Lock()
	defer lk.Unlock()

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		acct, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		holding, err := s.holdings.Get(ctx, accountID, quote.Symbol)
		if err != nil {
			return err
		}
		if quantity > holding.Shares {
			return domain.ErrInsufficientShares
		}

		if err := s.accounts.CompareAndSetCash(ctx, accountID, acct.Version, acct.Cash.Add(proceeds)); err != nil {
			return err
		}

		rec := newRecord(accountID, quote.Symbol, -quantity, quote.Price)
		if err := s.log.Append(ctx, rec); err != nil {
			return s.revertCash(ctx, accountID, proceeds.Neg(), err)
		}

		if err := s.applyShares(ctx, accountID, quote, -quantity); err != nil {
			s.l.Error("holding update failed after log append",
				zap.String("account", accountID),
				zap.String("symbol", quote.Symbol),
				zap.Error(err))
			return errors.Wrap(domain.ErrStorageFailure, err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.l.Info("sell executed",
		zap.String("account", accountID),
		zap.String("symbol", quote.Symbol),
		zap.Int64("quantity", quantity),
		zap.String("price", quote.Price.String()))
	return nil
}

// revertCash undoes a committed cash change after a later step of the same
// operation failed, so no partial effect stays behind. cause is the error
// that triggered the revert.
func (s *Service) revertCash(ctx context.Context, accountID string, delta decimal.Decimal, cause error) error {
	acct, err := s.accounts.Get(ctx, accountID)
	if err == nil {
		err = s.accounts.CompareAndSetCash(ctx, accountID, acct.Version, acct.Cash.Add(delta))
	}
	if err != nil {
		s.l.Error("cash revert failed, balance drifted from log",
			zap.String("account", accountID),
			zap.String("delta", delta.String()),
			zap.Error(err))
	}
	return errors.Wrap(domain.ErrStorageFailure, cause.Error())
}

// applyShares folds a signed share delta into the holding row, creating it
// on first buy and removing it at zero. The row's version makes the
// read-modify-write atomic against other Service instances sharing the
// store: a lost race costs one re-read, never a lost delta. The delta is
// already durable in the log when this runs, so conflicts never repeat the
// cash or log steps.
func (s *Service) applyShares(ctx context.Context, accountID string, quote domain.Quote, delta int64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		holding, err := s.holdings.Get(ctx, accountID, quote.Symbol)
		if errors.Is(err, domain.ErrNoSuchHolding) {
			holding = domain.Holding{AccountID: accountID, Symbol: quote.Symbol, Name: quote.Name}
		} else if err != nil {
			return err
		}

		holding.Shares += delta
		if holding.Shares == 0 {
			err = s.holdings.Remove(ctx, accountID, quote.Symbol, holding.Version)
		} else {
			holding.Revalue(quote.Price)
			err = s.holdings.Upsert(ctx, holding)
		}
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		return err
	}
}

func (s *Service) lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	quote, err := s.oracle.Lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSymbol) || errors.Is(err, domain.ErrPriceUnavailable) {
			return domain.Quote{}, err
		}
		return domain.Quote{}, errors.Wrap(domain.ErrPriceUnavailable, err.Error())
	}
	return quote, nil
}

// Quote resolves a symbol without touching any account state.
func (s *Service) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	return s.lookup(ctx, symbol)
}

// History returns the account's transaction records, most recent first.
func (s *Service) History(ctx context.Context, accountID string) ([]domain.TransactionRecord, error) {
	lk := s.lockFor(accountID)
	lk.RLock()
	defer lk.RUnlock()

	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.log.ListByAccount(ctx, accountID)
}

func newRecord(accountID, symbol string, shares int64, price decimal.Decimal) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Symbol:     symbol,
		Shares:     shares,
		Price:      price,
		RecordedAt: time.Now().UTC(),
	}
}
