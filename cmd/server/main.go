// Package main runs the mint candle service: the HTTP API, the Prometheus
// endpoint, and the periodic ingestion and aggregation sweeps.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mint-candles/internal/config"
	"mint-candles/internal/graph"
	"mint-candles/internal/ingestion"
	"mint-candles/internal/locking"
	"mint-candles/internal/observability"
	"mint-candles/internal/ohlc"
	"mint-candles/internal/registry"
	"mint-candles/internal/scheduler"
	"mint-candles/internal/server"
	"mint-candles/internal/storage"
	"mint-candles/internal/storage/memory"
	"mint-candles/internal/storage/migrations"
	pgstore "mint-candles/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "Path to YAML config file")
	graphqlEndpoint := flag.String("graphql-endpoint", os.Getenv("GRAPHQL_ENDPOINT"), "GraphQL indexer endpoint (overrides config)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *graphqlEndpoint != "" {
		cfg.Upstream.GraphQLEndpoint = *graphqlEndpoint
	}
	if *postgresDSN != "" {
		cfg.Database.DSN = *postgresDSN
	}
	if *useMemory {
		cfg.Database.UseMemory = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logger := newLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	txStore, candleStore, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	metrics := observability.NewMetrics("mint_candles")
	locks := locking.NewKeyedMutex()

	client := graph.NewClient(cfg.Upstream.GraphQLEndpoint, graph.WithTimeout(cfg.Upstream.Timeout))
	directory := registry.NewGraphDirectory(client)

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		Directory:    directory,
		Source:       ingestion.NewGraphSource(client),
		TxStore:      txStore,
		PageSize:     cfg.Ingestion.PageSize,
		SweepWorkers: cfg.Ingestion.SweepWorkers,
		Locks:        locks,
		Metrics:      metrics,
		Logger:       logger.With().Str("component", "ingestion").Logger(),
	})
	builder := ohlc.NewBuilder(ohlc.BuilderOptions{
		Directory:    directory,
		TxStore:      txStore,
		CandleStore:  candleStore,
		SweepWorkers: cfg.Ingestion.SweepWorkers,
		Locks:        locks,
		Metrics:      metrics,
		Logger:       logger.With().Str("component", "ohlc").Logger(),
	})

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.Options{
			Ingester:      manager,
			Builder:       builder,
			FetchSchedule: cfg.Scheduler.FetchSchedule,
			OHLCSchedule:  cfg.Scheduler.OHLCSchedule,
			Logger:        logger.With().Str("component", "scheduler").Logger(),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("create scheduler")
		}
		sched.Start()
		defer sched.Stop()
	}

	handler := server.NewHandler(server.HandlerOptions{
		TxStore:     txStore,
		CandleStore: candleStore,
		Ingester:    manager,
		Builder:     builder,
		Scheduler:   statusReporter(sched),
		Logger:      logger.With().Str("component", "api").Logger(),
	})
	router := server.NewRouter(&server.Config{
		Handler:      handler,
		APIKeys:      cfg.Server.APIKeys,
		AdminAPIKeys: cfg.Server.AdminAPIKeys,
		Logger:       logger.With().Str("component", "http").Logger(),
	})

	metricsSrv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: observability.Handler()}
	go func() {
		logger.Info().Str("addr", cfg.Metrics.ListenAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	apiSrv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: router}
	go func() {
		logger.Info().Str("addr", cfg.Server.ListenAddr).Msg("api listening")
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown")
	}
}

// loadConfig reads the YAML file when present, otherwise starts from
// defaults so flags and env vars can fill in the rest.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

func createStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.TransactionStore, storage.CandleStore, func(), error) {
	if cfg.Database.UseMemory {
		logger.Info().Msg("using in-memory storage")
		return memory.NewTransactionStore(), memory.NewCandleStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	logger.Info().Msg("postgres ready")
	return pgstore.NewTransactionStore(pool), pgstore.NewCandleStore(pool), pool.Close, nil
}

// statusReporter adapts a possibly-nil scheduler to the handler's interface.
func statusReporter(s *scheduler.Scheduler) server.StatusReporter {
	if s == nil {
		return nil
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
