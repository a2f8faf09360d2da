// Package postgres implements the ledger's store set over PostgreSQL.
// It mirrors the in-memory set semantically: the same compare-and-update
// primitive on accounts and holdings, the same append-only transaction
// table, and no business rules anywhere.
package postgres

import (
	"context"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/mkovalev/folio/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id      TEXT PRIMARY KEY,
	cash    NUMERIC NOT NULL DEFAULT 0 CHECK (cash >= 0),
	version BIGINT  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS holdings (
	account_id TEXT    NOT NULL REFERENCES accounts(id),
	symbol     TEXT    NOT NULL,
	name       TEXT    NOT NULL DEFAULT '',
	shares     BIGINT  NOT NULL CHECK (shares >= 0),
	last_price NUMERIC NOT NULL,
	last_value NUMERIC NOT NULL,
	version    BIGINT  NOT NULL DEFAULT 0,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT        PRIMARY KEY,
	account_id  TEXT        NOT NULL REFERENCES accounts(id),
	symbol      TEXT        NULL,
	shares      BIGINT      NOT NULL DEFAULT 0,
	price       NUMERIC     NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS transactions_account_idx
	ON transactions (account_id, recorded_at DESC, id DESC);
`

// Store bundles the three persistence abstractions over one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, registers the shopspring decimal codecs and ensures
// the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres config")
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{pool: pool}, nil
}

// Accounts returns the account store view.
func (s *Store) Accounts() *AccountStore { return &AccountStore{pool: s.pool} }

// Holdings returns the holding store view.
func (s *Store) Holdings() *HoldingStore { return &HoldingStore{pool: s.pool} }

// TransactionLog returns the append-only transaction log view.
func (s *Store) TransactionLog() *TransactionLog { return &TransactionLog{pool: s.pool} }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

func storageErr(err error, msg string) error {
	return errors.Wrapf(domain.ErrStorageFailure, "%s: %v", msg, err)
}
