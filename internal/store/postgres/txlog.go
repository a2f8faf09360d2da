package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkovalev/folio/internal/domain"
)

// TransactionLog persists audit records in the append-only transactions
// table. Rows are inserted once and never updated or deleted.
type TransactionLog struct {
	pool *pgxpool.Pool
}

// Append inserts the record.
func (l *TransactionLog) Append(ctx context.Context, rec domain.TransactionRecord) error {
	symbol := sql.NullString{String: rec.Symbol, Valid: rec.Symbol != ""}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO transactions (id, account_id, symbol, shares, price, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.AccountID, symbol, rec.Shares, rec.Price, rec.RecordedAt)
	if err != nil {
		return storageErr(err, "insert transaction")
	}
	return nil
}

// ListByAccount returns the account's records, most recent first.
func (l *TransactionLog) ListByAccount(ctx context.Context, accountID string) ([]domain.TransactionRecord, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, account_id, COALESCE(symbol, ''), shares, price, recorded_at
		 FROM transactions WHERE account_id = $1
		 ORDER BY recorded_at DESC, id DESC`,
		accountID)
	if err != nil {
		return nil, storageErr(err, "select transactions")
	}
	defer rows.Close()

	var out []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Symbol, &rec.Shares, &rec.Price, &rec.RecordedAt); err != nil {
			return nil, storageErr(err, "scan transaction")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate transactions")
	}
	return out, nil
}

// SumShares returns the sum of signed shares for (accountID, symbol).
func (l *TransactionLog) SumShares(ctx context.Context, accountID, symbol string) (int64, error) {
	var sum int64
	err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(shares), 0) FROM transactions
		 WHERE account_id = $1 AND symbol = $2`,
		accountID, symbol).Scan(&sum)
	if err != nil {
		return 0, storageErr(err, "sum transaction shares")
	}
	return sum, nil
}
