package ohlc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mint-candles/internal/domain"
	"mint-candles/internal/locking"
	"mint-candles/internal/observability"
	"mint-candles/internal/registry"
	"mint-candles/internal/storage"
)

const defaultSweepWorkers = 4

// Builder folds stored transactions into candles. Incremental generation
// resumes from the bucket after the latest stored candle; rebuild deletes
// and replays from the beginning of the transaction ledger. Both are
// serialized per (mint, period) through a keyed mutex.
type Builder struct {
	directory   registry.MintDirectory
	txStore     storage.TransactionStore
	candleStore storage.CandleStore

	sweepWorkers int
	locks        *locking.KeyedMutex
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// BuilderOptions contains configuration for creating a Builder.
type BuilderOptions struct {
	Directory   registry.MintDirectory
	TxStore     storage.TransactionStore
	CandleStore storage.CandleStore

	// SweepWorkers bounds concurrency of GenerateAll and RebuildAll.
	// Defaults to 4.
	SweepWorkers int
	// Locks serializes runs per (mint, period). May be shared with the
	// ingestion manager.
	Locks   *locking.KeyedMutex
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// NewBuilder creates a new candle builder.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.SweepWorkers <= 0 {
		opts.SweepWorkers = defaultSweepWorkers
	}
	if opts.Locks == nil {
		opts.Locks = locking.NewKeyedMutex()
	}
	return &Builder{
		directory:    opts.Directory,
		txStore:      opts.TxStore,
		candleStore:  opts.CandleStore,
		sweepWorkers: opts.SweepWorkers,
		locks:        opts.Locks,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

// Generate folds new transactions into candles for one mint. An empty period
// selects all periods. Returns the periods that received at least one candle.
// Unlike ingestion, an unknown mint is an error here.
func (b *Builder) Generate(ctx context.Context, address, period string) ([]domain.Period, error) {
	updated, _, err := b.generateRun(ctx, address, period)
	return updated, err
}

func (b *Builder) generateRun(ctx context.Context, address, period string) ([]domain.Period, int, error) {
	address = strings.TrimSpace(address)

	started := time.Now()
	updated, buckets, err := b.generate(ctx, address, period)
	b.metrics.ObserveAggregation(time.Since(started).Seconds(), err)
	return updated, buckets, err
}

func (b *Builder) generate(ctx context.Context, address, period string) ([]domain.Period, int, error) {
	mint, err := b.directory.Resolve(ctx, address)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve mint %s: %w", address, err)
	}

	periods, single, err := resolvePeriods(period)
	if err != nil {
		return nil, 0, err
	}

	var updated []domain.Period
	buckets := 0
	for _, p := range periods {
		n, err := b.generatePeriod(ctx, mint.Address, p)
		if err != nil {
			if single {
				return nil, buckets, err
			}
			b.logger.Error().Err(err).
				Str("mint", mint.Address).
				Str("period", string(p)).
				Msg("candle generation failed")
			continue
		}
		buckets += n
		if n > 0 {
			updated = append(updated, p)
		}
	}
	return updated, buckets, nil
}

// generatePeriod folds transactions newer than the last stored bucket into
// candles for one (mint, period). Returns the number of buckets written.
func (b *Builder) generatePeriod(ctx context.Context, mintID string, period domain.Period) (int, error) {
	unlock := b.locks.Lock(lockKey(mintID, period))
	defer unlock()

	var from int64
	last, ok, err := b.candleStore.LatestBucketStart(ctx, mintID, period)
	if err != nil {
		return 0, fmt.Errorf("latest bucket for %s/%s: %w", mintID, period, err)
	}
	if ok {
		from = last + period.Seconds()
	}

	return b.foldFrom(ctx, mintID, period, from)
}

// Rebuild deletes all candles for (mint, period) and replays the full
// transaction ledger. An empty period rebuilds all periods. The delete and
// replay run under one lock so an incremental run can never observe a
// half-rebuilt series.
func (b *Builder) Rebuild(ctx context.Context, address, period string) ([]domain.Period, error) {
	rebuilt, _, err := b.rebuildRun(ctx, address, period)
	return rebuilt, err
}

func (b *Builder) rebuildRun(ctx context.Context, address, period string) ([]domain.Period, int, error) {
	address = strings.TrimSpace(address)

	mint, err := b.directory.Resolve(ctx, address)
	if err != nil {
		b.metrics.ObserveRebuild(err)
		return nil, 0, fmt.Errorf("resolve mint %s: %w", address, err)
	}

	periods, single, err := resolvePeriods(period)
	if err != nil {
		b.metrics.ObserveRebuild(err)
		return nil, 0, err
	}

	var rebuilt []domain.Period
	buckets := 0
	for _, p := range periods {
		n, err := b.rebuildPeriod(ctx, mint.Address, p)
		b.metrics.ObserveRebuild(err)
		if err != nil {
			if single {
				return nil, buckets, err
			}
			b.logger.Error().Err(err).
				Str("mint", mint.Address).
				Str("period", string(p)).
				Msg("candle rebuild failed")
			continue
		}
		buckets += n
		rebuilt = append(rebuilt, p)
	}
	return rebuilt, buckets, nil
}

func (b *Builder) rebuildPeriod(ctx context.Context, mintID string, period domain.Period) (int, error) {
	unlock := b.locks.Lock(lockKey(mintID, period))
	defer unlock()

	if err := b.candleStore.DeleteByMintAndPeriod(ctx, mintID, period); err != nil {
		return 0, fmt.Errorf("delete candles for %s/%s: %w", mintID, period, err)
	}
	return b.foldFrom(ctx, mintID, period, 0)
}

// foldFrom reads transactions at or after from, buckets them, and merges the
// resulting candles into the store. Callers hold the (mint, period) lock.
func (b *Builder) foldFrom(ctx context.Context, mintID string, period domain.Period, from int64) (int, error) {
	txs, err := b.txStore.GetSince(ctx, mintID, from)
	if err != nil {
		return 0, fmt.Errorf("load transactions for %s: %w", mintID, err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	candles := BuildCandles(mintID, period, txs)
	for _, c := range candles {
		if _, err := b.candleStore.MergeUpsert(ctx, c); err != nil {
			return 0, fmt.Errorf("upsert candle %s/%s@%d: %w", mintID, period, c.BucketStart, err)
		}
		b.metrics.CandleUpserted(string(period))
	}

	b.logger.Debug().
		Str("mint", mintID).
		Str("period", string(period)).
		Int("buckets", len(candles)).
		Msg("candles written")
	return len(candles), nil
}

// SweepResult is the outcome of one mint within an aggregation sweep.
// Buckets is the number of candle rows this mint contributed; summing it
// across results gives the sweep's total bucket count.
type SweepResult struct {
	Mint    string
	Periods []domain.Period
	Buckets int
	Err     error
}

// TotalBuckets sums the bucket counts of a sweep's results.
func TotalBuckets(results []SweepResult) int {
	total := 0
	for _, r := range results {
		total += r.Buckets
	}
	return total
}

// GenerateAll runs incremental generation for every registered mint across
// all periods. Per-mint failures are captured in the results and do not stop
// the sweep.
func (b *Builder) GenerateAll(ctx context.Context) ([]SweepResult, error) {
	results, err := b.sweep(ctx, "aggregate", b.generateRun)
	if err == nil && b.metrics != nil {
		b.metrics.LastCandleSweep.SetToCurrentTime()
	}
	return results, err
}

// RebuildAll rebuilds every registered mint across all periods.
func (b *Builder) RebuildAll(ctx context.Context) ([]SweepResult, error) {
	return b.sweep(ctx, "rebuild", b.rebuildRun)
}

func (b *Builder) sweep(ctx context.Context, name string, run func(context.Context, string, string) ([]domain.Period, int, error)) ([]SweepResult, error) {
	mints, err := b.directory.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mints: %w", err)
	}

	results := make([]SweepResult, len(mints))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.sweepWorkers)
	for i, mint := range mints {
		g.Go(func() error {
			periods, buckets, err := run(ctx, mint.Address, "")
			if err != nil {
				b.metrics.SweepError(name)
			}
			results[i] = SweepResult{Mint: mint.Address, Periods: periods, Buckets: buckets, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	b.logger.Info().
		Str("sweep", name).
		Int("mints", len(results)).
		Int("buckets", TotalBuckets(results)).
		Msg("sweep complete")
	return results, nil
}

// resolvePeriods expands an optional period string into the periods in scope.
// single reports whether the caller named one explicit period.
func resolvePeriods(period string) ([]domain.Period, bool, error) {
	if period == "" {
		return domain.AllPeriods(), false, nil
	}
	p, err := domain.ParsePeriod(period)
	if err != nil {
		return nil, false, err
	}
	return []domain.Period{p}, true, nil
}

func lockKey(mintID string, period domain.Period) string {
	return mintID + "|" + string(period)
}
