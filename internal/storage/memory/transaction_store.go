package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mint-candles/internal/domain"
	"mint-candles/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by (mint_id, timestamp)
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// transactionKey generates the unique key for a transaction.
func transactionKey(mintID string, timestamp int64) string {
	return fmt.Sprintf("%s|%d", mintID, timestamp)
}

// InsertIfAbsent stores a transaction unless the (mint_id, timestamp) key
// already exists. Duplicate inserts are silent no-ops.
func (s *TransactionStore) InsertIfAbsent(_ context.Context, tx *domain.Transaction) (bool, error) {
	if tx == nil || tx.MintID == "" {
		return false, storage.ErrInvalidInput
	}

	key := transactionKey(tx.MintID, tx.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return false, nil
	}

	stored := *tx
	if stored.CreatedAt == 0 {
		stored.CreatedAt = time.Now().Unix()
	}
	s.data[key] = &stored
	return true, nil
}

// LatestTimestamp returns the newest event timestamp for a mint, or 0 when
// the mint has no transactions.
func (s *TransactionStore) LatestTimestamp(_ context.Context, mintID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	for _, tx := range s.data {
		if tx.MintID == mintID && tx.Timestamp > latest {
			latest = tx.Timestamp
		}
	}
	return latest, nil
}

// GetSince retrieves all transactions for a mint with timestamp >= from,
// ordered ascending by timestamp.
func (s *TransactionStore) GetSince(_ context.Context, mintID string, from int64) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.MintID == mintID && tx.Timestamp >= from {
			stored := *tx
			result = append(result, &stored)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// GetRange retrieves up to limit transactions within [from, to], newest
// first. to <= 0 means no upper bound.
func (s *TransactionStore) GetRange(_ context.Context, mintID string, from, to int64, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.MintID != mintID || tx.Timestamp < from {
			continue
		}
		if to > 0 && tx.Timestamp > to {
			continue
		}
		stored := *tx
		result = append(result, &stored)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
