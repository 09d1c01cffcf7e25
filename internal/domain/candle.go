package domain

import "github.com/shopspring/decimal"

// Candle represents one merged OHLC bucket.
// Corresponds to the ohlc_data table, unique per (mint_id, period, bucket
// start). A candle is created by the first merge upsert for its key and
// mutated in place by later merges: high only widens up, low only widens
// down, volume and trade count accumulate, close tracks the latest merged
// batch, and open is fixed at first write.
type Candle struct {
	MintID      string
	Period      Period
	BucketStart int64 // Unix seconds, aligned to the period boundary

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	// Volume is the integer sum of floored mint sizes in this bucket,
	// scaled down by 10^9 with exact integer division.
	Volume     decimal.Decimal
	TradeCount int64

	UpdatedAt int64 // Unix seconds, set by the store on each merge
}
