package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"mint-candles/internal/domain"
	"mint-candles/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// InsertIfAbsent stores a transaction unless the (mint_id, timestamp) key
// exists. The unique constraint makes the conflicting insert a silent no-op.
func (s *TransactionStore) InsertIfAbsent(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if tx == nil || tx.MintID == "" {
		return false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transactions (mint_id, timestamp, mint_size_epoch, mint_fee, price, current_era, current_epoch)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint_id, timestamp) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		tx.MintID,
		tx.Timestamp,
		tx.MintSize.String(),
		tx.MintFee.String(),
		tx.Price.String(),
		tx.Era,
		tx.Epoch,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LatestTimestamp returns the newest stored event timestamp for a mint,
// or 0 when the mint has no transactions.
func (s *TransactionStore) LatestTimestamp(ctx context.Context, mintID string) (int64, error) {
	query := `SELECT COALESCE(MAX(timestamp), 0) FROM transactions WHERE mint_id = $1`

	var latest int64
	if err := s.pool.QueryRow(ctx, query, mintID).Scan(&latest); err != nil {
		return 0, fmt.Errorf("latest transaction timestamp: %w", err)
	}
	return latest, nil
}

// GetSince retrieves all transactions for a mint with timestamp >= from,
// ordered ascending by timestamp.
func (s *TransactionStore) GetSince(ctx context.Context, mintID string, from int64) ([]*domain.Transaction, error) {
	query := `
		SELECT mint_id, timestamp, mint_size_epoch::text, mint_fee::text, price::text, current_era, current_epoch, created_at
		FROM transactions
		WHERE mint_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, mintID, from)
	if err != nil {
		return nil, fmt.Errorf("get transactions since: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetRange retrieves up to limit transactions within [from, to], newest
// first. to <= 0 means no upper bound.
func (s *TransactionStore) GetRange(ctx context.Context, mintID string, from, to int64, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT mint_id, timestamp, mint_size_epoch::text, mint_fee::text, price::text, current_era, current_epoch, created_at
		FROM transactions
		WHERE mint_id = $1 AND timestamp >= $2 AND ($3::bigint <= 0 OR timestamp <= $3)
		ORDER BY timestamp DESC
		LIMIT $4
	`

	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, query, mintID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("get transactions in range: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction

	for rows.Next() {
		var (
			tx                   domain.Transaction
			size, fee, price     string
			createdAt            time.Time
		)

		err := rows.Scan(
			&tx.MintID,
			&tx.Timestamp,
			&size,
			&fee,
			&price,
			&tx.Era,
			&tx.Epoch,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		if tx.MintSize, err = decimal.NewFromString(size); err != nil {
			return nil, fmt.Errorf("parse mint size %q: %w", size, err)
		}
		if tx.MintFee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("parse mint fee %q: %w", fee, err)
		}
		if tx.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		tx.CreatedAt = createdAt.Unix()

		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
