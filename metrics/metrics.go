/*
Package metrics exposes Prometheus instrumentation for the settlement engine.

PURPOSE:
  Counters for settlement runs, generated remittances and reported payment
  outcomes, plus DB-backed gauges over the remittance table so dashboards can
  see the PENDING backlog without scraping the API.

USAGE:
  metrics.Init(store.DB(), logger)
  ...
  metrics.ObserveSettlementRun(string(run.Status), time.Since(start))

  All record helpers are nil-safe: before Init they are no-ops, so library
  code never needs a registered-metrics precondition.
*/
package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "settlement_"

var (
	registerOnce sync.Once

	settlementRuns       *prometheus.CounterVec
	settlementRunLatency *prometheus.HistogramVec

	remittancesGenerated prometheus.Counter
	claimConflicts       prometheus.Counter
	outcomesReported     *prometheus.CounterVec
	expiredRemittances   prometheus.Counter
)

// Init registers the settlement metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		settlementRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total settlement runs by final status",
			},
			[]string{"status"},
		)
		settlementRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Settlement run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)

		remittancesGenerated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "remittances_generated_total",
				Help: "Total remittances created by settlement runs",
			},
		)
		claimConflicts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "claim_conflicts_total",
				Help: "Total claim conflicts detected during remittance creation",
			},
		)
		outcomesReported = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outcomes_reported_total",
				Help: "Total payment outcomes reported by resulting status",
			},
			[]string{"status"},
		)
		expiredRemittances = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "remittances_expired_total",
				Help: "Total remittances cancelled by the pending-expiry sweep",
			},
		)

		prometheus.MustRegister(
			settlementRuns,
			settlementRunLatency,
			remittancesGenerated,
			claimConflicts,
			outcomesReported,
			expiredRemittances,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSettlementRun records a completed run with its duration.
func ObserveSettlementRun(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if settlementRuns != nil {
		settlementRuns.WithLabelValues(status).Inc()
	}
	if settlementRunLatency != nil {
		settlementRunLatency.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// AddRemittancesGenerated increments the generated-remittance counter.
func AddRemittancesGenerated(count int) {
	if count <= 0 {
		return
	}
	if remittancesGenerated != nil {
		remittancesGenerated.Add(float64(count))
	}
}

// IncClaimConflict increments the claim conflict counter.
func IncClaimConflict() {
	if claimConflicts != nil {
		claimConflicts.Inc()
	}
}

// IncOutcomeReported increments the outcome counter for a resulting status.
func IncOutcomeReported(status string) {
	if status == "" {
		status = "unknown"
	}
	if outcomesReported != nil {
		outcomesReported.WithLabelValues(status).Inc()
	}
}

// AddExpiredRemittances increments the expiry sweep counter by count.
func AddExpiredRemittances(count int) {
	if count <= 0 {
		return
	}
	if expiredRemittances != nil {
		expiredRemittances.Add(float64(count))
	}
}
