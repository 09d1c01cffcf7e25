// Package scheduler drives the periodic ingestion and aggregation sweeps.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mint-candles/internal/ingestion"
	"mint-candles/internal/ohlc"
)

// Ingester runs an ingestion sweep over every registered mint.
type Ingester interface {
	IngestAll(ctx context.Context) ([]ingestion.MintResult, error)
}

// CandleBuilder runs an aggregation sweep over every registered mint.
type CandleBuilder interface {
	GenerateAll(ctx context.Context) ([]ohlc.SweepResult, error)
}

// JobStatus describes the last completed run of one scheduled job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	Items     int       `json:"items"`
	Failed    int       `json:"failed"`
	NextRun   time.Time `json:"next_run"`
}

// Scheduler owns the cron runner for the fetch and candle sweeps.
// A sweep that outlives its own period is skipped, not stacked.
type Scheduler struct {
	ingester Ingester
	builder  CandleBuilder
	logger   zerolog.Logger

	fetchSchedule string
	ohlcSchedule  string

	cron    *cron.Cron
	fetchID cron.EntryID
	ohlcID  cron.EntryID

	mu     sync.Mutex
	status map[string]*JobStatus
}

// Options contains configuration for creating a Scheduler.
type Options struct {
	Ingester Ingester
	Builder  CandleBuilder

	// Cron expressions for the two sweeps.
	FetchSchedule string
	OHLCSchedule  string

	Logger zerolog.Logger
}

// New creates a scheduler. Jobs are registered but not started.
func New(opts Options) (*Scheduler, error) {
	s := &Scheduler{
		ingester:      opts.Ingester,
		builder:       opts.Builder,
		logger:        opts.Logger,
		fetchSchedule: opts.FetchSchedule,
		ohlcSchedule:  opts.OHLCSchedule,
		status: map[string]*JobStatus{
			"fetch": {Name: "fetch", Schedule: opts.FetchSchedule},
			"ohlc":  {Name: "ohlc", Schedule: opts.OHLCSchedule},
		},
	}

	cronLogger := cron.PrintfLogger(&zerologPrintf{logger: opts.Logger})
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	var err error
	s.fetchID, err = s.cron.AddFunc(opts.FetchSchedule, s.runFetch)
	if err != nil {
		return nil, err
	}
	s.ohlcID, err = s.cron.AddFunc(opts.OHLCSchedule, s.runOHLC)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info().
		Str("fetch", s.fetchSchedule).
		Str("ohlc", s.ohlcSchedule).
		Msg("scheduler started")
	s.cron.Start()
}

// Stop stops the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runFetch() {
	ctx := context.Background()
	results, err := s.ingester.IngestAll(ctx)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.record("fetch", s.fetchID, len(results), failed, err)
}

func (s *Scheduler) runOHLC() {
	ctx := context.Background()
	results, err := s.builder.GenerateAll(ctx)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.record("ohlc", s.ohlcID, len(results), failed, err)
}

func (s *Scheduler) record(name string, id cron.EntryID, items, failed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status[name]
	st.LastRun = time.Now().UTC()
	st.Items = items
	st.Failed = failed
	st.NextRun = s.cron.Entry(id).Next
	if err != nil {
		st.LastError = err.Error()
		s.logger.Error().Err(err).Str("job", name).Msg("sweep failed")
	} else {
		st.LastError = ""
		s.logger.Info().
			Str("job", name).
			Int("items", items).
			Int("failed", failed).
			Msg("sweep complete")
	}
}

// Status returns a snapshot of every job's last run.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.status))
	for _, name := range []string{"fetch", "ohlc"} {
		st := *s.status[name]
		if entry := s.entryFor(name); !entry.Next.IsZero() {
			st.NextRun = entry.Next
		}
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) entryFor(name string) cron.Entry {
	if name == "fetch" {
		return s.cron.Entry(s.fetchID)
	}
	return s.cron.Entry(s.ohlcID)
}

// zerologPrintf adapts zerolog to cron's printf-style logger.
type zerologPrintf struct {
	logger zerolog.Logger
}

func (z *zerologPrintf) Printf(format string, args ...any) {
	z.logger.Debug().Msgf(format, args...)
}
