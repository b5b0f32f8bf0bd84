package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OddsAPIRequestsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spreadsync_odds_api_requests_remaining",
		Help: "Last x-requests-remaining value reported by the odds provider",
	})

	OddsAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreadsync_odds_api_requests_total",
		Help: "Odds provider calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	PayloadsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreadsync_payloads_ingested_total",
		Help: "Odds payloads committed or rolled back",
	}, []string{"mode", "outcome"})

	RowsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreadsync_rows_ingested_total",
		Help: "Rows upserted by table",
	}, []string{"table"})

	HistoricalFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spreadsync_historical_timestamp_failures_total",
		Help: "Historical timestamps skipped after a fetch or store error",
	})

	ScoresUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spreadsync_scores_updated_total",
		Help: "Games whose final score was written by the reconciler",
	})

	ScoresUnmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spreadsync_scores_unmatched_total",
		Help: "Final score records with no stored game inside the date window",
	})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spreadsync_nl_queries_total",
		Help: "Dashboard query executions by outcome",
	}, []string{"outcome"})

	LanguageModelCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spreadsync_language_model_call_seconds",
		Help:    "Latency of language model completions",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})
)
