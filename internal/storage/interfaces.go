package storage

import (
	"context"

	"mint-candles/internal/domain"
)

// TransactionStore provides access to the append-only mint transaction ledger.
// Rows are unique per (mint_id, timestamp); transactions are never mutated
// and never deleted.
type TransactionStore interface {
	// InsertIfAbsent stores a transaction unless a row for the same
	// (mint_id, timestamp) already exists. The conflicting insert is a
	// silent no-op: returns false with a nil error. First write wins.
	InsertIfAbsent(ctx context.Context, tx *domain.Transaction) (bool, error)

	// LatestTimestamp returns the newest stored event timestamp for a mint,
	// or 0 when the mint has no transactions.
	LatestTimestamp(ctx context.Context, mintID string) (int64, error)

	// GetSince retrieves all transactions for a mint with timestamp >= from.
	// Order is not guaranteed; callers sort as needed.
	GetSince(ctx context.Context, mintID string, from int64) ([]*domain.Transaction, error)

	// GetRange retrieves up to limit transactions for a mint within
	// [from, to], newest first. to <= 0 means no upper bound.
	GetRange(ctx context.Context, mintID string, from, to int64, limit int) ([]*domain.Transaction, error)
}

// CandleStore provides access to merged OHLC buckets, unique per
// (mint_id, period, bucket start).
type CandleStore interface {
	// MergeUpsert inserts the candle, or merges it into the existing row for
	// the same key: high = max, low = min, close = incoming close,
	// volume and trade count accumulate, open keeps its first-write value.
	// Returns the stored row after the merge.
	MergeUpsert(ctx context.Context, c *domain.Candle) (*domain.Candle, error)

	// LatestBucketStart returns the newest bucket start for (mint, period).
	// ok is false when no candles exist for the key.
	LatestBucketStart(ctx context.Context, mintID string, period domain.Period) (start int64, ok bool, err error)

	// GetLatest retrieves the newest candle for (mint, period).
	// Returns ErrNotFound when none exists.
	GetLatest(ctx context.Context, mintID string, period domain.Period) (*domain.Candle, error)

	// GetRange retrieves up to limit candles for (mint, period) within
	// [from, to] by bucket start, newest first. to <= 0 means no upper bound.
	GetRange(ctx context.Context, mintID string, period domain.Period, from, to int64, limit int) ([]*domain.Candle, error)

	// DeleteByMintAndPeriod removes every candle for (mint, period).
	// Used by full rebuilds before replaying the transaction ledger.
	DeleteByMintAndPeriod(ctx context.Context, mintID string, period domain.Period) error
}
