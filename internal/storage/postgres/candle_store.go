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

// CandleStore implements storage.CandleStore using PostgreSQL.
type CandleStore struct {
	pool *Pool
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(pool *Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

const candleColumns = `mint_id, period, timestamp, open_price::text, high_price::text, low_price::text, close_price::text, volume::text, trade_count, updated_at`

// MergeUpsert inserts the candle or merges it into the existing row.
// The conflict clause keeps open at its first-write value, widens high/low,
// replaces close, and accumulates volume and trade count.
func (s *CandleStore) MergeUpsert(ctx context.Context, c *domain.Candle) (*domain.Candle, error) {
	if c == nil || c.MintID == "" || !c.Period.Valid() {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ohlc_data (mint_id, period, timestamp, open_price, high_price, low_price, close_price, volume, trade_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (mint_id, period, timestamp) DO UPDATE SET
			high_price = GREATEST(ohlc_data.high_price, EXCLUDED.high_price),
			low_price = LEAST(ohlc_data.low_price, EXCLUDED.low_price),
			close_price = EXCLUDED.close_price,
			volume = ohlc_data.volume + EXCLUDED.volume,
			trade_count = ohlc_data.trade_count + EXCLUDED.trade_count,
			updated_at = CURRENT_TIMESTAMP
		RETURNING ` + candleColumns

	row := s.pool.QueryRow(ctx, query,
		c.MintID,
		string(c.Period),
		c.BucketStart,
		c.Open.String(),
		c.High.String(),
		c.Low.String(),
		c.Close.String(),
		c.Volume.String(),
		c.TradeCount,
	)

	stored, err := scanCandle(row)
	if err != nil {
		return nil, fmt.Errorf("merge upsert candle: %w", err)
	}
	return stored, nil
}

// LatestBucketStart returns the newest bucket start for (mint, period).
func (s *CandleStore) LatestBucketStart(ctx context.Context, mintID string, period domain.Period) (int64, bool, error) {
	query := `SELECT MAX(timestamp) FROM ohlc_data WHERE mint_id = $1 AND period = $2`

	var latest *int64
	if err := s.pool.QueryRow(ctx, query, mintID, string(period)).Scan(&latest); err != nil {
		return 0, false, fmt.Errorf("latest candle bucket: %w", err)
	}
	if latest == nil {
		return 0, false, nil
	}
	return *latest, true, nil
}

// GetLatest retrieves the newest candle for (mint, period).
func (s *CandleStore) GetLatest(ctx context.Context, mintID string, period domain.Period) (*domain.Candle, error) {
	query := `
		SELECT ` + candleColumns + `
		FROM ohlc_data
		WHERE mint_id = $1 AND period = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`

	c, err := scanCandle(s.pool.QueryRow(ctx, query, mintID, string(period)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest candle: %w", err)
	}
	return c, nil
}

// GetRange retrieves up to limit candles within [from, to] by bucket start,
// newest first. to <= 0 means no upper bound.
func (s *CandleStore) GetRange(ctx context.Context, mintID string, period domain.Period, from, to int64, limit int) ([]*domain.Candle, error) {
	query := `
		SELECT ` + candleColumns + `
		FROM ohlc_data
		WHERE mint_id = $1 AND period = $2 AND timestamp >= $3 AND ($4::bigint <= 0 OR timestamp <= $4)
		ORDER BY timestamp DESC
		LIMIT $5
	`

	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, query, mintID, string(period), from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("get candles in range: %w", err)
	}
	defer rows.Close()

	var candles []*domain.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}

// DeleteByMintAndPeriod removes every candle for (mint, period).
func (s *CandleStore) DeleteByMintAndPeriod(ctx context.Context, mintID string, period domain.Period) error {
	query := `DELETE FROM ohlc_data WHERE mint_id = $1 AND period = $2`

	if _, err := s.pool.Exec(ctx, query, mintID, string(period)); err != nil {
		return fmt.Errorf("delete candles: %w", err)
	}
	return nil
}

// scanCandle scans a single candle row.
func scanCandle(row pgx.Row) (*domain.Candle, error) {
	var (
		c                             domain.Candle
		period                        string
		open, high, low, close_, vol  string
		updatedAt                     time.Time
	)

	err := row.Scan(
		&c.MintID,
		&period,
		&c.BucketStart,
		&open,
		&high,
		&low,
		&close_,
		&vol,
		&c.TradeCount,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Period = domain.Period(period)
	if c.Open, err = decimal.NewFromString(open); err != nil {
		return nil, fmt.Errorf("parse open %q: %w", open, err)
	}
	if c.High, err = decimal.NewFromString(high); err != nil {
		return nil, fmt.Errorf("parse high %q: %w", high, err)
	}
	if c.Low, err = decimal.NewFromString(low); err != nil {
		return nil, fmt.Errorf("parse low %q: %w", low, err)
	}
	if c.Close, err = decimal.NewFromString(close_); err != nil {
		return nil, fmt.Errorf("parse close %q: %w", close_, err)
	}
	if c.Volume, err = decimal.NewFromString(vol); err != nil {
		return nil, fmt.Errorf("parse volume %q: %w", vol, err)
	}
	c.UpdatedAt = updatedAt.Unix()

	return &c, nil
}
