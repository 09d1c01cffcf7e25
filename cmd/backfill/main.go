// Package main runs a one-shot backfill: ingest every transaction for a
// mint, then rebuild its candles from scratch.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"mint-candles/internal/graph"
	"mint-candles/internal/ingestion"
	"mint-candles/internal/locking"
	"mint-candles/internal/ohlc"
	"mint-candles/internal/registry"
	"mint-candles/internal/storage/migrations"
	pgstore "mint-candles/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	graphqlEndpoint := flag.String("graphql-endpoint", os.Getenv("GRAPHQL_ENDPOINT"), "GraphQL indexer endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	mint := flag.String("mint", "", "Mint address to backfill (default: all registered mints)")
	period := flag.String("period", "", "Period to rebuild (default: all periods)")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *graphqlEndpoint == "" {
		logger.Fatal().Msg("--graphql-endpoint is required")
	}
	if *postgresDSN == "" {
		logger.Fatal().Msg("--postgres-dsn is required")
	}
	if *mint != "" {
		if err := registry.ValidateAddress(*mint); err != nil {
			logger.Fatal().Err(err).Msg("invalid mint address")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	txStore := pgstore.NewTransactionStore(pool)
	candleStore := pgstore.NewCandleStore(pool)

	client := graph.NewClient(*graphqlEndpoint)
	directory := registry.NewGraphDirectory(client)
	locks := locking.NewKeyedMutex()

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		Directory: directory,
		Source:    ingestion.NewGraphSource(client),
		TxStore:   txStore,
		Locks:     locks,
		Logger:    logger,
	})
	builder := ohlc.NewBuilder(ohlc.BuilderOptions{
		Directory:   directory,
		TxStore:     txStore,
		CandleStore: candleStore,
		Locks:       locks,
		Logger:      logger,
	})

	if *mint != "" {
		backfillOne(ctx, logger, manager, builder, *mint, *period)
		return
	}
	backfillAll(ctx, logger, manager, builder)
}

func backfillOne(ctx context.Context, logger zerolog.Logger, manager *ingestion.Manager, builder *ohlc.Builder, mint, period string) {
	count, err := manager.IngestMint(ctx, mint)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingest")
	}
	logger.Info().Int("new_transactions", count).Msg("ingestion done")

	rebuilt, err := builder.Rebuild(ctx, mint, period)
	if err != nil {
		logger.Fatal().Err(err).Msg("rebuild")
	}
	logger.Info().Interface("periods", rebuilt).Msg("rebuild done")
}

func backfillAll(ctx context.Context, logger zerolog.Logger, manager *ingestion.Manager, builder *ohlc.Builder) {
	results, err := manager.IngestAll(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingest sweep")
	}
	total := 0
	for _, r := range results {
		if r.Err != nil {
			logger.Error().Err(r.Err).Str("mint", r.Mint).Msg("ingest failed")
			continue
		}
		total += r.NewTransactions
	}
	logger.Info().Int("mints", len(results)).Int("new_transactions", total).Msg("ingestion sweep done")

	sweep, err := builder.RebuildAll(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("rebuild sweep")
	}
	failed := 0
	for _, r := range sweep {
		if r.Err != nil {
			failed++
			logger.Error().Err(r.Err).Str("mint", r.Mint).Msg("rebuild failed")
		}
	}
	logger.Info().
		Int("mints", len(sweep)).
		Int("failed", failed).
		Int("buckets", ohlc.TotalBuckets(sweep)).
		Msg("rebuild sweep done")
}
