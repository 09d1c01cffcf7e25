// Package ohlc folds mint transactions into OHLC candles and keeps the
// candle store current through incremental aggregation and full rebuilds.
package ohlc

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"mint-candles/internal/domain"
)

// volumeScale divides the summed mint sizes to express volume in whole
// token units. Mint sizes arrive in base units of 10^9.
var volumeScale = big.NewInt(1_000_000_000)

// BuildCandles folds transactions into one candle per period bucket.
// Transactions may arrive in any order; each bucket's open is the price of
// its earliest transaction and close the price of its latest. Volume is the
// integer sum of floored mint sizes divided by 10^9, exact integer division.
// Returned candles are ordered by bucket start ascending.
func BuildCandles(mintID string, period domain.Period, txs []*domain.Transaction) []*domain.Candle {
	if len(txs) == 0 {
		return nil
	}

	sorted := make([]*domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var candles []*domain.Candle
	volumes := make(map[int64]*big.Int)

	for _, tx := range sorted {
		start := period.BucketStart(tx.Timestamp)

		var current *domain.Candle
		if len(candles) > 0 && candles[len(candles)-1].BucketStart == start {
			current = candles[len(candles)-1]
		}

		if current == nil {
			current = &domain.Candle{
				MintID:      mintID,
				Period:      period,
				BucketStart: start,
				Open:        tx.Price,
				High:        tx.Price,
				Low:         tx.Price,
				Close:       tx.Price,
			}
			candles = append(candles, current)
			volumes[start] = new(big.Int)
		}

		if tx.Price.GreaterThan(current.High) {
			current.High = tx.Price
		}
		if tx.Price.LessThan(current.Low) {
			current.Low = tx.Price
		}
		current.Close = tx.Price
		current.TradeCount++
		volumes[start].Add(volumes[start], tx.MintSize.Floor().BigInt())
	}

	for _, c := range candles {
		scaled := new(big.Int).Div(volumes[c.BucketStart], volumeScale)
		c.Volume = decimal.NewFromBigInt(scaled, 0)
	}
	return candles
}
