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

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by (mint_id, period, bucket start)
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*domain.Candle),
	}
}

// candleKey generates the unique key for a candle.
func candleKey(mintID string, period domain.Period, bucketStart int64) string {
	return fmt.Sprintf("%s|%s|%d", mintID, period, bucketStart)
}

// MergeUpsert inserts the candle, or merges it into the existing row for the
// same (mint_id, period, bucket start). Open keeps its first-write value.
func (s *CandleStore) MergeUpsert(_ context.Context, c *domain.Candle) (*domain.Candle, error) {
	if c == nil || c.MintID == "" || !c.Period.Valid() {
		return nil, storage.ErrInvalidInput
	}

	key := candleKey(c.MintID, c.Period, c.BucketStart)
	now := time.Now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[key]
	if !ok {
		stored := *c
		stored.UpdatedAt = now
		s.data[key] = &stored
		out := stored
		return &out, nil
	}

	if c.High.GreaterThan(existing.High) {
		existing.High = c.High
	}
	if c.Low.LessThan(existing.Low) {
		existing.Low = c.Low
	}
	existing.Close = c.Close
	existing.Volume = existing.Volume.Add(c.Volume)
	existing.TradeCount += c.TradeCount
	existing.UpdatedAt = now

	out := *existing
	return &out, nil
}

// LatestBucketStart returns the newest bucket start for (mint, period).
func (s *CandleStore) LatestBucketStart(_ context.Context, mintID string, period domain.Period) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	found := false
	for _, c := range s.data {
		if c.MintID == mintID && c.Period == period {
			if !found || c.BucketStart > latest {
				latest = c.BucketStart
				found = true
			}
		}
	}
	return latest, found, nil
}

// GetLatest retrieves the newest candle for (mint, period).
func (s *CandleStore) GetLatest(_ context.Context, mintID string, period domain.Period) (*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Candle
	for _, c := range s.data {
		if c.MintID == mintID && c.Period == period {
			if latest == nil || c.BucketStart > latest.BucketStart {
				latest = c
			}
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	out := *latest
	return &out, nil
}

// GetRange retrieves up to limit candles within [from, to] by bucket start,
// newest first. to <= 0 means no upper bound.
func (s *CandleStore) GetRange(_ context.Context, mintID string, period domain.Period, from, to int64, limit int) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.MintID != mintID || c.Period != period || c.BucketStart < from {
			continue
		}
		if to > 0 && c.BucketStart > to {
			continue
		}
		stored := *c
		result = append(result, &stored)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart > result[j].BucketStart
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// DeleteByMintAndPeriod removes every candle for (mint, period).
func (s *CandleStore) DeleteByMintAndPeriod(_ context.Context, mintID string, period domain.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, c := range s.data {
		if c.MintID == mintID && c.Period == period {
			delete(s.data, key)
		}
	}
	return nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
