package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mkovalev/folio/internal/domain"
)

// AccountStore persists accounts in the accounts table.
type AccountStore struct {
	pool *pgxpool.Pool
}

// Create inserts an account with zero cash balance.
func (s *AccountStore) Create(ctx context.Context, id string) (domain.Account, error) {
	_, err := s.pool.Exec(ctx, `INSERT INTO accounts (id) VALUES ($1)`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Account{}, domain.ErrAccountExists
		}
		return domain.Account{}, storageErr(err, "insert account")
	}
	return domain.Account{ID: id, Cash: decimal.Zero}, nil
}

// Get returns the current account row.
func (s *AccountStore) Get(ctx context.Context, id string) (domain.Account, error) {
	var acct domain.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, cash, version FROM accounts WHERE id = $1`, id,
	).Scan(&acct.ID, &acct.Cash, &acct.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, storageErr(err, "select account")
	}
	return acct, nil
}

// CompareAndSetCash updates cash only when the stored version still matches.
// Zero rows updated means the caller lost the race: domain.ErrConflict.
func (s *AccountStore) CompareAndSetCash(ctx context.Context, id string, version uint64, cash decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET cash = $3, version = version + 1 WHERE id = $1 AND version = $2`,
		id, version, cash)
	if err != nil {
		return storageErr(err, "update account cash")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing account from a stale version.
		var exists bool
		if qerr := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return storageErr(qerr, "check account existence")
		}
		if !exists {
			return domain.ErrAccountNotFound
		}
		return domain.ErrConflict
	}
	return nil
}
