// Package ingestion pulls mint transactions from the upstream indexer into
// storage, resuming from the latest stored timestamp per mint.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mint-candles/internal/domain"
	"mint-candles/internal/locking"
	"mint-candles/internal/observability"
	"mint-candles/internal/registry"
	"mint-candles/internal/storage"
)

const (
	defaultPageSize     = 1000
	defaultSweepWorkers = 4
)

// Manager coordinates ingestion from the upstream source to storage.
// Runs for the same mint are serialized through a keyed mutex.
type Manager struct {
	directory registry.MintDirectory
	source    Source
	txStore   storage.TransactionStore

	pageSize     int
	sweepWorkers int
	locks        *locking.KeyedMutex
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Directory registry.MintDirectory
	Source    Source
	TxStore   storage.TransactionStore

	// PageSize is the upstream page size. Defaults to 1000.
	PageSize int
	// SweepWorkers bounds concurrency of IngestAll. Defaults to 4.
	SweepWorkers int
	// Locks serializes runs per mint. May share a map with the candle
	// builder; the two lock disjoint keys and never contend.
	Locks   *locking.KeyedMutex
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.SweepWorkers <= 0 {
		opts.SweepWorkers = defaultSweepWorkers
	}
	if opts.Locks == nil {
		opts.Locks = locking.NewKeyedMutex()
	}
	return &Manager{
		directory:    opts.Directory,
		source:       opts.Source,
		txStore:      opts.TxStore,
		pageSize:     opts.PageSize,
		sweepWorkers: opts.SweepWorkers,
		locks:        opts.Locks,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

// IngestMint fetches all transactions for one mint that are newer than the
// latest stored timestamp and stores them. Returns the count of newly stored
// transactions. An unregistered mint is not an error and yields zero.
func (m *Manager) IngestMint(ctx context.Context, address string) (int, error) {
	address = strings.TrimSpace(address)

	started := time.Now()
	stored, err := m.ingestMint(ctx, address)
	m.metrics.ObserveIngest(stored, time.Since(started).Seconds(), err)
	return stored, err
}

func (m *Manager) ingestMint(ctx context.Context, address string) (int, error) {
	unlock := m.locks.Lock(address)
	defer unlock()

	mint, err := m.directory.Resolve(ctx, address)
	if err != nil {
		if errors.Is(err, registry.ErrMintNotFound) {
			m.logger.Warn().Str("mint", address).Msg("mint not registered upstream, skipping")
			return 0, nil
		}
		return 0, fmt.Errorf("resolve mint %s: %w", address, err)
	}

	latest, err := m.txStore.LatestTimestamp(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("latest timestamp for %s: %w", address, err)
	}

	stored := 0
	offset := 0
	for {
		page, err := m.source.FetchPage(ctx, address, offset, m.pageSize)
		if err != nil {
			return stored, fmt.Errorf("fetch page at offset %d for %s: %w", offset, address, err)
		}
		m.metrics.PageFetched()

		if len(page) == 0 {
			break
		}

		done := false
		for _, event := range page {
			ts, err := strconv.ParseInt(event.Timestamp, 10, 64)
			if err != nil {
				return stored, fmt.Errorf("parse timestamp %q for mint %s: %w", event.Timestamp, address, err)
			}
			// Pages arrive newest first, so the first already-stored
			// timestamp means everything after it is stored too. Check
			// before parsing the rest of the event: rows below the
			// cutoff never abort the run.
			if ts <= latest {
				done = true
				break
			}
			tx, err := m.transactionFromEvent(mint, ts, event)
			if err != nil {
				return stored, err
			}
			inserted, err := m.txStore.InsertIfAbsent(ctx, tx)
			if err != nil {
				return stored, fmt.Errorf("store transaction for %s at %d: %w", address, tx.Timestamp, err)
			}
			if inserted {
				stored++
			}
		}
		if done || len(page) < m.pageSize {
			break
		}
		offset += m.pageSize
	}

	m.logger.Info().
		Str("mint", address).
		Int("new_transactions", stored).
		Msg("ingestion complete")
	return stored, nil
}

// transactionFromEvent builds the stored row. The registered fee rate is
// what the price derivation applies, so it is also what the fee column
// records; the upstream per-event fee is not persisted.
func (m *Manager) transactionFromEvent(mint *domain.Mint, ts int64, event PageEvent) (*domain.Transaction, error) {
	size, err := decimal.NewFromString(event.MintSize)
	if err != nil {
		return nil, fmt.Errorf("parse mint size %q for mint %s: %w", event.MintSize, mint.Address, err)
	}

	return &domain.Transaction{
		MintID:    mint.Address,
		Timestamp: ts,
		MintSize:  size,
		MintFee:   mint.FeeRate,
		Price:     domain.DerivePrice(mint.FeeRate, size),
		Era:       event.Era,
		Epoch:     event.Epoch,
	}, nil
}

// MintResult is the outcome of one mint within a sweep.
type MintResult struct {
	Mint            string
	NewTransactions int
	Err             error
}

// IngestAll runs ingestion for every registered mint. One mint failing does
// not stop the others; failures are reported per mint in the results.
func (m *Manager) IngestAll(ctx context.Context) ([]MintResult, error) {
	mints, err := m.directory.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mints: %w", err)
	}

	results := make([]MintResult, len(mints))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.sweepWorkers)
	for i, mint := range mints {
		g.Go(func() error {
			stored, err := m.IngestMint(ctx, mint.Address)
			if err != nil {
				m.metrics.SweepError("ingest")
				m.logger.Error().Err(err).Str("mint", mint.Address).Msg("ingestion failed")
			}
			results[i] = MintResult{Mint: mint.Address, NewTransactions: stored, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	if m.metrics != nil {
		m.metrics.LastIngestSweep.SetToCurrentTime()
	}
	return results, nil
}
