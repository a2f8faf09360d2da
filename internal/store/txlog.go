package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/mkovalev/folio/internal/domain"
)

const (
	txlogSegmentLimit = 1000
	txlogMaxSegments  = 1000
	txlogKeyPrefix    = "txn_"
)

// TransactionLog is the append-only record of every executed trade and cash
// deposit, persisted in WAL segments and indexed in memory for reads. The
// WAL fits the contract exactly: records are written once and never
// rewritten.
type TransactionLog struct {
	mu  sync.RWMutex
	wal *gowal.Wal
	// byAccount holds records in append order, oldest first.
	byAccount map[string][]domain.TransactionRecord
}

// OpenTransactionLog opens (or creates) the WAL under dir and rebuilds the
// in-memory index from it.
func OpenTransactionLog(dir string) (*TransactionLog, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "txlog_",
		SegmentThreshold: txlogSegmentLimit,
		MaxSegments:      txlogMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init transaction log WAL")
	}

	l := &TransactionLog{
		wal:       wal,
		byAccount: make(map[string][]domain.TransactionRecord),
	}
	for msg := range wal.Iterator() {
		var rec domain.TransactionRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			wal.Close()
			return nil, errors.Wrap(err, "decode transaction record")
		}
		l.byAccount[rec.AccountID] = append(l.byAccount[rec.AccountID], rec)
	}
	return l, nil
}

// Append durably writes the record and adds it to the index. The WAL write
// happens before the index update so a crash can lose at most an
// unacknowledged append.
func (l *TransactionLog) Append(_ context.Context, rec domain.TransactionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal transaction record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.wal.Write(l.wal.CurrentIndex()+1, txlogKeyPrefix+rec.AccountID, payload); err != nil {
		return errors.Wrap(domain.ErrStorageFailure, err.Error())
	}
	l.byAccount[rec.AccountID] = append(l.byAccount[rec.AccountID], rec)
	return nil
}

// ListByAccount returns the account's records, most recent first.
func (l *TransactionLog) ListByAccount(_ context.Context, accountID string) ([]domain.TransactionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	recs := l.byAccount[accountID]
	out := make([]domain.TransactionRecord, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec
	}
	return out, nil
}

// SumShares returns the sum of signed shares over the log for
// (accountID, symbol). A holding is consistent iff its share count equals
// this sum.
func (l *TransactionLog) SumShares(_ context.Context, accountID, symbol string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum int64
	for _, rec := range l.byAccount[accountID] {
		if rec.Symbol == symbol {
			sum += rec.Shares
		}
	}
	return sum, nil
}

// Close closes the underlying WAL.
func (l *TransactionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.wal.Close()
}
