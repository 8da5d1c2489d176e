// Package observability holds the Prometheus metrics for the backend.
// Exposed on /metrics by the API server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

var (
	// LedgerAppends counts accepted ledger entries by direction.
	LedgerAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deudat_ledger_appends_total",
		Help: "Ledger entries accepted, labelled by direction (+ or -).",
	}, []string{"direction"})

	// AppendRejected counts appends refused at validation (unknown user or
	// product, bad direction).
	AppendRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deudat_ledger_appends_rejected_total",
		Help: "Ledger appends rejected at validation.",
	})

	// Resets counts explicit reset-epoch creations (bootstrap excluded).
	Resets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deudat_resets_total",
		Help: "Reset epochs created by an explicit user action.",
	})

	// DebtReports counts debts report computations.
	DebtReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deudat_debt_reports_total",
		Help: "Debts reports assembled.",
	})

	// AggregationSeconds observes how long a full debts aggregation takes.
	AggregationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deudat_aggregation_duration_seconds",
		Help:    "Wall time of a full debts aggregation.",
		Buckets: prometheus.DefBuckets,
	})
)

// ─── Auth Metrics ───────────────────────────────────────────────────────────

var (
	// SessionsIssued counts successful logins.
	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deudat_sessions_issued_total",
		Help: "Session tokens issued by login.",
	})

	// AuthFailures counts rejected credentials or tokens.
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deudat_auth_failures_total",
		Help: "Rejected logins and unauthorized requests.",
	})
)
