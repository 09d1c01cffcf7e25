// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid; every recording method is a no-op on it.
type Metrics struct {
	// Ingestion metrics
	TransactionsIngested prometheus.Counter
	IngestRuns           *prometheus.CounterVec
	IngestDuration       prometheus.Histogram
	UpstreamPagesFetched prometheus.Counter

	// Aggregation metrics
	CandlesUpserted     *prometheus.CounterVec
	AggregationRuns     *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
	RebuildRuns         *prometheus.CounterVec

	// Sweep metrics
	SweepErrors     *prometheus.CounterVec
	LastIngestSweep prometheus.Gauge
	LastCandleSweep prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mint_candles"
	}

	return &Metrics{
		TransactionsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_ingested_total",
			Help:      "Number of new mint transactions stored.",
		}),
		IngestRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Single-mint ingestion runs by result.",
		}, []string{"result"}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of single-mint ingestion runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		UpstreamPagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_pages_fetched_total",
			Help:      "Pages fetched from the upstream indexer.",
		}),
		CandlesUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candles_upserted_total",
			Help:      "Candle merge upserts by period.",
		}, []string{"period"}),
		AggregationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_runs_total",
			Help:      "Single-mint aggregation runs by result.",
		}, []string{"result"}),
		AggregationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of single-mint aggregation runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		RebuildRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuild_runs_total",
			Help:      "Single-mint rebuild runs by result.",
		}, []string{"result"}),
		SweepErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Per-item errors captured during sweeps.",
		}, []string{"sweep"}),
		LastIngestSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_ingest_sweep_timestamp_seconds",
			Help:      "Completion time of the last ingestion sweep.",
		}),
		LastCandleSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_candle_sweep_timestamp_seconds",
			Help:      "Completion time of the last aggregation sweep.",
		}),
	}
}

// ObserveIngest records one single-mint ingestion run.
func (m *Metrics) ObserveIngest(stored int, seconds float64, err error) {
	if m == nil {
		return
	}
	m.TransactionsIngested.Add(float64(stored))
	m.IngestDuration.Observe(seconds)
	m.IngestRuns.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveAggregation records one single-mint aggregation run.
func (m *Metrics) ObserveAggregation(seconds float64, err error) {
	if m == nil {
		return
	}
	m.AggregationDuration.Observe(seconds)
	m.AggregationRuns.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveRebuild records one single-mint rebuild run.
func (m *Metrics) ObserveRebuild(err error) {
	if m == nil {
		return
	}
	m.RebuildRuns.WithLabelValues(resultLabel(err)).Inc()
}

// CandleUpserted records one candle merge for the given period.
func (m *Metrics) CandleUpserted(period string) {
	if m == nil {
		return
	}
	m.CandlesUpserted.WithLabelValues(period).Inc()
}

// PageFetched records one upstream page fetch.
func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.UpstreamPagesFetched.Inc()
}

// SweepError records one captured per-item sweep error.
func (m *Metrics) SweepError(sweep string) {
	if m == nil {
		return
	}
	m.SweepErrors.WithLabelValues(sweep).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
