package domain

import "github.com/shopspring/decimal"

// Mint represents a tradable mint token registered upstream.
// Records are created by the on-chain registrar and are read-only here.
type Mint struct {
	Address string          // base58 mint address, the external identifier
	Name    string          // token name, may be empty
	Symbol  string          // token symbol, may be empty
	FeeRate decimal.Decimal // fixed per-mint fee rate used for price derivation
}
