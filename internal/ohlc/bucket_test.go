package ohlc_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"mint-candles/internal/domain"
	"mint-candles/internal/ohlc"
)

func tx(ts int64, size, price string) *domain.Transaction {
	return &domain.Transaction{
		MintID:    testMint,
		Timestamp: ts,
		MintSize:  decimal.RequireFromString(size),
		Price:     decimal.RequireFromString(price),
	}
}

func TestBuildCandles_SingleEvent(t *testing.T) {
	candles := ohlc.BuildCandles(testMint, domain.Period5m, []*domain.Transaction{
		tx(100, "10", "42.5"),
	})
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1", len(candles))
	}
	c := candles[0]
	if c.BucketStart != 0 {
		t.Errorf("bucket start = %d, want 0", c.BucketStart)
	}
	for name, v := range map[string]decimal.Decimal{
		"open": c.Open, "high": c.High, "low": c.Low, "close": c.Close,
	} {
		if v.String() != "42.5" {
			t.Errorf("%s = %s, want 42.5", name, v)
		}
	}
	if c.TradeCount != 1 {
		t.Errorf("trade count = %d, want 1", c.TradeCount)
	}
}

func TestBuildCandles_FoldsBucket(t *testing.T) {
	// Fee rate 1000: size 10 prices at 100, size 20 at 50.
	candles := ohlc.BuildCandles(testMint, domain.Period5m, []*domain.Transaction{
		tx(160, "20", "50"),
		tx(100, "10", "100"),
	})
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1", len(candles))
	}
	c := candles[0]
	if c.Open.String() != "100" || c.Close.String() != "50" {
		t.Errorf("open/close = %s/%s, want 100/50", c.Open, c.Close)
	}
	if c.High.String() != "100" || c.Low.String() != "50" {
		t.Errorf("high/low = %s/%s, want 100/50", c.High, c.Low)
	}
	if c.TradeCount != 2 {
		t.Errorf("trade count = %d, want 2", c.TradeCount)
	}
}

func TestBuildCandles_VolumeScaling(t *testing.T) {
	candles := ohlc.BuildCandles(testMint, domain.Period5m, []*domain.Transaction{
		tx(10, "4000000000.7", "1"),
		tx(20, "1000000000", "1"),
		tx(30, "999999999", "1"),
	})
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1", len(candles))
	}
	// floor(4000000000.7) + 1000000000 + 999999999 = 5999999999; / 1e9 = 5.
	if got := candles[0].Volume.String(); got != "5" {
		t.Errorf("volume = %s, want 5", got)
	}
}

func TestBuildCandles_BucketAlignment(t *testing.T) {
	candles := ohlc.BuildCandles(testMint, domain.Period5m, []*domain.Transaction{
		tx(301, "1", "2"),
		tx(299, "1", "1"),
	})
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	if candles[0].BucketStart != 0 || candles[1].BucketStart != 300 {
		t.Errorf("bucket starts = %d, %d, want 0, 300", candles[0].BucketStart, candles[1].BucketStart)
	}
	if candles[0].Close.String() != "1" || candles[1].Open.String() != "2" {
		t.Errorf("events landed in the wrong buckets")
	}
}

func TestBuildCandles_Empty(t *testing.T) {
	if candles := ohlc.BuildCandles(testMint, domain.Period5m, nil); candles != nil {
		t.Fatalf("candles = %v, want nil", candles)
	}
}
