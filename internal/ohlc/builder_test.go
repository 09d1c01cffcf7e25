package ohlc_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"mint-candles/internal/domain"
	"mint-candles/internal/ohlc"
	"mint-candles/internal/registry"
	"mint-candles/internal/storage"
	"mint-candles/internal/storage/memory"
)

const testMint = "So11111111111111111111111111111111111111112"

type stubDirectory struct {
	mints map[string]*domain.Mint
}

func (d *stubDirectory) Resolve(_ context.Context, address string) (*domain.Mint, error) {
	mint, ok := d.mints[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrMintNotFound, address)
	}
	return mint, nil
}

func (d *stubDirectory) ListAll(_ context.Context) ([]*domain.Mint, error) {
	var mints []*domain.Mint
	for _, m := range d.mints {
		mints = append(mints, m)
	}
	return mints, nil
}

func newTestBuilder(t *testing.T) (*ohlc.Builder, *memory.TransactionStore, *memory.CandleStore) {
	t.Helper()
	txStore := memory.NewTransactionStore()
	candleStore := memory.NewCandleStore()
	builder := ohlc.NewBuilder(ohlc.BuilderOptions{
		Directory: &stubDirectory{mints: map[string]*domain.Mint{
			testMint: {Address: testMint, FeeRate: decimal.RequireFromString("1000")},
		}},
		TxStore:     txStore,
		CandleStore: candleStore,
	})
	return builder, txStore, candleStore
}

func storeTx(t *testing.T, store *memory.TransactionStore, ts int64, size, price string) {
	t.Helper()
	_, err := store.InsertIfAbsent(context.Background(), tx(ts, size, price))
	if err != nil {
		t.Fatalf("InsertIfAbsent(%d): %v", ts, err)
	}
}

func TestGenerate_SinglePeriod(t *testing.T) {
	builder, txStore, candleStore := newTestBuilder(t)
	ctx := context.Background()

	storeTx(t, txStore, 100, "10", "100")
	storeTx(t, txStore, 160, "20", "50")
	storeTx(t, txStore, 400, "10", "100")

	updated, err := builder.Generate(ctx, testMint, "5m")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(updated) != 1 || updated[0] != domain.Period5m {
		t.Fatalf("updated = %v, want [5m]", updated)
	}

	candles, err := candleStore.GetRange(ctx, testMint, domain.Period5m, 0, 0, 10)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	// Newest first.
	if candles[0].BucketStart != 300 || candles[1].BucketStart != 0 {
		t.Fatalf("bucket starts = %d, %d, want 300, 0", candles[0].BucketStart, candles[1].BucketStart)
	}
	first := candles[1]
	if first.Open.String() != "100" || first.Close.String() != "50" || first.TradeCount != 2 {
		t.Fatalf("unexpected first bucket: %+v", first)
	}
}

func TestGenerate_AllPeriods(t *testing.T) {
	builder, txStore, candleStore := newTestBuilder(t)
	ctx := context.Background()

	storeTx(t, txStore, 100, "10", "100")

	updated, err := builder.Generate(ctx, testMint, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(updated) != len(domain.AllPeriods()) {
		t.Fatalf("updated %d periods, want %d", len(updated), len(domain.AllPeriods()))
	}
	for _, p := range domain.AllPeriods() {
		if _, err := candleStore.GetLatest(ctx, testMint, p); err != nil {
			t.Errorf("no candle for period %s: %v", p, err)
		}
	}
}

func TestGenerate_ResumesAfterLastBucket(t *testing.T) {
	builder, txStore, candleStore := newTestBuilder(t)
	ctx := context.Background()

	storeTx(t, txStore, 100, "10", "100")
	if _, err := builder.Generate(ctx, testMint, "5m"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A second run with no new full buckets writes nothing.
	updated, err := builder.Generate(ctx, testMint, "5m")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(updated) != 0 {
		t.Fatalf("updated = %v, want none", updated)
	}
	c, err := candleStore.GetLatest(ctx, testMint, domain.Period5m)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if c.TradeCount != 1 {
		t.Fatalf("trade count = %d after repeat run, want 1", c.TradeCount)
	}

	// New transactions in a later bucket are picked up.
	storeTx(t, txStore, 700, "10", "200")
	updated, err = builder.Generate(ctx, testMint, "5m")
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("updated = %v, want [5m]", updated)
	}
	c, err = candleStore.GetLatest(ctx, testMint, domain.Period5m)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if c.BucketStart != 600 || c.Open.String() != "200" {
		t.Fatalf("latest = %+v, want bucket 600 open 200", c)
	}
}

func TestRebuild_MatchesIncremental(t *testing.T) {
	builder, txStore, candleStore := newTestBuilder(t)
	ctx := context.Background()

	// Ingest and aggregate in two chunks split at a bucket boundary.
	storeTx(t, txStore, 100, "10", "100")
	storeTx(t, txStore, 160, "20", "50")
	if _, err := builder.Generate(ctx, testMint, "5m"); err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	storeTx(t, txStore, 301, "30", "75")
	storeTx(t, txStore, 650, "10", "60")
	if _, err := builder.Generate(ctx, testMint, "5m"); err != nil {
		t.Fatalf("second chunk: %v", err)
	}

	incremental, err := candleStore.GetRange(ctx, testMint, domain.Period5m, 0, 0, 100)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}

	rebuilt, err := builder.Rebuild(ctx, testMint, "5m")
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(rebuilt) != 1 {
		t.Fatalf("rebuilt = %v, want [5m]", rebuilt)
	}
	fresh, err := candleStore.GetRange(ctx, testMint, domain.Period5m, 0, 0, 100)
	if err != nil {
		t.Fatalf("GetRange after rebuild: %v", err)
	}

	if len(fresh) != len(incremental) {
		t.Fatalf("bucket count %d after rebuild, %d incremental", len(fresh), len(incremental))
	}
	for i := range fresh {
		a, b := fresh[i], incremental[i]
		if a.BucketStart != b.BucketStart ||
			!a.Open.Equal(b.Open) || !a.High.Equal(b.High) ||
			!a.Low.Equal(b.Low) || !a.Close.Equal(b.Close) ||
			!a.Volume.Equal(b.Volume) || a.TradeCount != b.TradeCount {
			t.Errorf("bucket %d diverged: rebuild %+v vs incremental %+v", a.BucketStart, a, b)
		}
	}
}

func TestRebuild_ReplacesStaleCandles(t *testing.T) {
	builder, txStore, candleStore := newTestBuilder(t)
	ctx := context.Background()

	// Seed a candle that no transaction backs.
	_, err := candleStore.MergeUpsert(ctx, &domain.Candle{
		MintID:      testMint,
		Period:      domain.Period5m,
		BucketStart: 9000,
		Open:        decimal.RequireFromString("1"),
		High:        decimal.RequireFromString("1"),
		Low:         decimal.RequireFromString("1"),
		Close:       decimal.RequireFromString("1"),
		TradeCount:  1,
	})
	if err != nil {
		t.Fatalf("MergeUpsert: %v", err)
	}

	storeTx(t, txStore, 100, "10", "100")
	if _, err := builder.Rebuild(ctx, testMint, "5m"); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	candles, err := candleStore.GetRange(ctx, testMint, domain.Period5m, 0, 0, 100)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(candles) != 1 || candles[0].BucketStart != 0 {
		t.Fatalf("candles after rebuild = %+v, want single bucket 0", candles)
	}
}

func TestGenerate_UnknownPeriod(t *testing.T) {
	builder, _, _ := newTestBuilder(t)
	_, err := builder.Generate(context.Background(), testMint, "7m")
	if !errors.Is(err, domain.ErrUnknownPeriod) {
		t.Fatalf("err = %v, want ErrUnknownPeriod", err)
	}
}

func TestGenerate_UnknownMint(t *testing.T) {
	builder, _, _ := newTestBuilder(t)
	_, err := builder.Generate(context.Background(), "unknown-mint", "5m")
	if !errors.Is(err, registry.ErrMintNotFound) {
		t.Fatalf("err = %v, want ErrMintNotFound", err)
	}
}

func TestGenerate_NoTransactions(t *testing.T) {
	builder, _, candleStore := newTestBuilder(t)
	ctx := context.Background()

	updated, err := builder.Generate(ctx, testMint, "5m")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(updated) != 0 {
		t.Fatalf("updated = %v, want none", updated)
	}
	if _, err := candleStore.GetLatest(ctx, testMint, domain.Period5m); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetLatest err = %v, want ErrNotFound", err)
	}
}

func TestGenerateAll_SweepsEveryMint(t *testing.T) {
	builder, txStore, _ := newTestBuilder(t)
	ctx := context.Background()

	storeTx(t, txStore, 100, "10", "100")

	results, err := builder.GenerateAll(ctx)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil || len(results[0].Periods) != len(domain.AllPeriods()) {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	// One transaction lands in one bucket per period.
	if got := ohlc.TotalBuckets(results); got != len(domain.AllPeriods()) {
		t.Fatalf("total buckets = %d, want %d", got, len(domain.AllPeriods()))
	}
}

func TestRebuildAll_ReportsBucketCount(t *testing.T) {
	builder, txStore, _ := newTestBuilder(t)
	ctx := context.Background()

	storeTx(t, txStore, 100, "10", "100")
	storeTx(t, txStore, 400, "10", "50")

	results, err := builder.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	// Two 5m buckets; every coarser period folds both events into one.
	want := len(domain.AllPeriods()) + 1
	if got := ohlc.TotalBuckets(results); got != want {
		t.Fatalf("total buckets = %d, want %d", got, want)
	}
}
