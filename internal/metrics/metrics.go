package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "staking_engine"

var (
	ScheduleEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_entries_total",
			Help:      "Reward schedule entries handled by settlement, by outcome",
		},
		[]string{"outcome"},
	)

	PositionsExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_expired_total",
			Help:      "Staking positions auto-expired, by position type",
		},
		[]string{"type"},
	)

	AccrualRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accrual_runs_total",
			Help:      "Accrual invocations, by result",
		},
		[]string{"result"},
	)

	AccrualRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "accrual_run_duration_seconds",
			Help:      "Duration of accrual passes that were not gated",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	BonusMaterializedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bonus_materialized_total",
			Help:      "Per-member bonus materializations, by result",
		},
		[]string{"result"},
	)

	TreeWalkTruncatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_walk_truncated_total",
			Help:      "Referral walks cut off at the depth cap",
		},
	)
)

func ObserveRun(result string, started time.Time) {
	AccrualRunsTotal.WithLabelValues(result).Inc()
	if result != "gated" {
		AccrualRunDuration.Observe(time.Since(started).Seconds())
	}
}
