package domain

import "github.com/shopspring/decimal"

// Transaction represents a single mint event.
// Corresponds to the transactions table: at most one row exists per
// (mint_id, timestamp), enforced by the store.
type Transaction struct {
	MintID    string          // mint address
	Timestamp int64           // Unix timestamp in seconds
	MintSize  decimal.Decimal // minted supply for this event
	MintFee   decimal.Decimal // fee rate applied when the price was derived
	Price     decimal.Decimal // derived price, fee rate / mint size
	Era       int64           // on-chain era at event time
	Epoch     int64           // on-chain epoch at event time
	CreatedAt int64           // record creation timestamp (seconds), set by the store
}

// DerivePrice computes the event price from the registry fee rate and the
// minted size. A non-positive size yields a zero price rather than a
// division error.
func DerivePrice(feeRate, mintSize decimal.Decimal) decimal.Decimal {
	if mintSize.IsPositive() {
		return feeRate.Div(mintSize)
	}
	return decimal.Zero
}
