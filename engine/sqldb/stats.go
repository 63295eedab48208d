package sqldb

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqldb_driver_ops",
		Help: "Exchanges executed, split into reads and writes.",
	}, []string{"kind"})
	failures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqldb_driver_failures",
		Help: "Exchanges that errored against the database.",
	})
	stmtHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqldb_stmt_hits",
		Help: "Read statements served from the prepared statement cache.",
	})
	stmtMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqldb_stmt_misses",
		Help: "Read statements prepared fresh.",
	})
)

var connStats = promauto.NewSummaryVec(prometheus.SummaryOpts{
	Name: "sqldb_conn",
	Help: "Stats about the database connection pool",
	// Track quantiles within small error
	Objectives: map[float64]float64{
		0.25: 0.05,
		0.50: 0.05,
		0.75: 0.05,
		0.90: 0.05,
		0.95: 0.02,
		0.99: 0.01,
	},
}, []string{"metric"})

var waitStats = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "sqldb_conn_wait",
	Help: "Stats about waiting on database connections",
}, []string{"metric"})

func RecordConnectionStats(db *sqlx.DB, _ time.Duration) {
	stats := db.Stats()

	connStats.WithLabelValues("num_open").Observe(float64(stats.OpenConnections))
	connStats.WithLabelValues("num_in_use").Observe(float64(stats.InUse))
	connStats.WithLabelValues("num_idle").Observe(float64(stats.Idle))

	// The library exports these as counters; recorded as gauges so deltas
	// can be analyzed downstream.
	waitStats.WithLabelValues("duration_ms").Set(float64(stats.WaitDuration.Milliseconds()))
	waitStats.WithLabelValues("count").Set(float64(stats.WaitCount))
}
