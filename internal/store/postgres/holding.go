package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/mkovalev/folio/internal/domain"
)

// HoldingStore persists holdings, one row per (account, symbol). Writes are
// guarded by the row's version, same as account cash.
type HoldingStore struct {
	pool *pgxpool.Pool
}

// Get returns the holding row for (accountID, symbol).
func (s *HoldingStore) Get(ctx context.Context, accountID, symbol string) (domain.Holding, error) {
	var h domain.Holding
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, symbol, name, shares, last_price, last_value, version
		 FROM holdings WHERE account_id = $1 AND symbol = $2`,
		accountID, symbol,
	).Scan(&h.AccountID, &h.Symbol, &h.Name, &h.Shares, &h.LastPrice, &h.LastValue, &h.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Holding{}, domain.ErrNoSuchHolding
		}
		return domain.Holding{}, storageErr(err, "select holding")
	}
	return h, nil
}

// ListByAccount returns the account's holdings with shares > 0, sorted by
// symbol.
func (s *HoldingStore) ListByAccount(ctx context.Context, accountID string) ([]domain.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, symbol, name, shares, last_price, last_value, version
		 FROM holdings WHERE account_id = $1 AND shares > 0 ORDER BY symbol`,
		accountID)
	if err != nil {
		return nil, storageErr(err, "select holdings")
	}
	defer rows.Close()

	var out []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.AccountID, &h.Symbol, &h.Name, &h.Shares, &h.LastPrice, &h.LastValue, &h.Version); err != nil {
			return nil, storageErr(err, "scan holding")
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate holdings")
	}
	return out, nil
}

// Upsert writes the holding if h.Version matches the stored row. A zero
// version inserts a fresh row; losing either race returns
// domain.ErrConflict so the caller can re-read and reapply.
func (s *HoldingStore) Upsert(ctx context.Context, h domain.Holding) error {
	if h.Version == 0 {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO holdings (account_id, symbol, name, shares, last_price, last_value, version)
			 VALUES ($1, $2, $3, $4, $5, $6, 1)`,
			h.AccountID, h.Symbol, h.Name, h.Shares, h.LastPrice, h.LastValue)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrConflict
			}
			return storageErr(err, "insert holding")
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE holdings
		 SET name = $3, shares = $4, last_price = $5, last_value = $6, version = version + 1
		 WHERE account_id = $1 AND symbol = $2 AND version = $7`,
		h.AccountID, h.Symbol, h.Name, h.Shares, h.LastPrice, h.LastValue, h.Version)
	if err != nil {
		return storageErr(err, "update holding")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Remove deletes the row for (accountID, symbol) if version matches.
// Removing an absent row is not an error.
func (s *HoldingStore) Remove(ctx context.Context, accountID, symbol string, version uint64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM holdings WHERE account_id = $1 AND symbol = $2 AND version = $3`,
		accountID, symbol, version)
	if err != nil {
		return storageErr(err, "delete holding")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if qerr := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM holdings WHERE account_id = $1 AND symbol = $2)`,
			accountID, symbol).Scan(&exists); qerr != nil {
			return storageErr(qerr, "check holding existence")
		}
		if exists {
			return domain.ErrConflict
		}
	}
	return nil
}
