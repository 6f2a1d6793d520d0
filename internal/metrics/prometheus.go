package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GateDecisions counts sentiment gate evaluations by outcome
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_gate_decisions_total",
			Help: "Sentiment gate evaluations by outcome and allowed direction",
		},
		[]string{"outcome", "direction"},
	)

	// SentimentValue tracks the current fear/greed reading
	SentimentValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hermes_sentiment_value",
			Help: "Most recent fear and greed index value",
		},
	)

	// SentimentRefreshes counts provider refresh attempts by result
	SentimentRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_sentiment_refreshes_total",
			Help: "Sentiment provider refresh attempts by result",
		},
		[]string{"result"},
	)

	// RiskAssessments counts risk evaluations by outcome
	RiskAssessments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_risk_assessments_total",
			Help: "Risk assessments by outcome",
		},
		[]string{"outcome"},
	)

	// RiskScore observes computed risk scores
	RiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hermes_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// DispatchResults counts order dispatch outcomes per exchange
	DispatchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_dispatch_results_total",
			Help: "Order dispatch outcomes per exchange",
		},
		[]string{"exchange", "status"},
	)

	// DispatchDuration observes exchange round trip time
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_dispatch_duration_seconds",
			Help:    "Exchange order round trip time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"exchange"},
	)

	// DispatchRetries counts order retries per exchange
	DispatchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_dispatch_retries_total",
			Help: "Order dispatch retries per exchange",
		},
		[]string{"exchange"},
	)

	// LedgerTransitions counts operation state transitions
	LedgerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_ledger_transitions_total",
			Help: "Operation ledger state transitions",
		},
		[]string{"to_status"},
	)

	// OpenOperations tracks currently open operations
	OpenOperations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hermes_open_operations",
			Help: "Number of currently open operations",
		},
	)

	// SignalsProcessed counts consumed signals by final status
	SignalsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_signals_processed_total",
			Help: "Consumed trading signals by final status",
		},
		[]string{"status"},
	)

	// WorkerExecutions counts worker runs by worker name and result
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_worker_executions_total",
			Help: "Background worker executions by result",
		},
		[]string{"worker", "result"},
	)

	// WorkerDuration observes worker execution time
	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_worker_duration_seconds",
			Help:    "Background worker execution time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)
)

func init() {
	prometheus.MustRegister(
		GateDecisions,
		SentimentValue,
		SentimentRefreshes,
		RiskAssessments,
		RiskScore,
		DispatchResults,
		DispatchDuration,
		DispatchRetries,
		LedgerTransitions,
		OpenOperations,
		SignalsProcessed,
		WorkerExecutions,
		WorkerDuration,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
