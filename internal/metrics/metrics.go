// Package metrics holds the Prometheus collectors shared by services and handlers.
package metrics

import (
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socio_jobs_total",
			Help: "Finished download jobs, by terminal status.",
		},
		[]string{"status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socio_job_duration_seconds",
			Help:    "Wall time of download jobs, by terminal status.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "socio_jobs_in_flight",
			Help: "Jobs currently holding a slot.",
		},
	)

	QuotaDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socio_quota_decisions_total",
			Help: "Quota decisions, by outcome (allowed, rejected, fail_open).",
		},
		[]string{"outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socio_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "socio_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	JanitorRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socio_janitor_removed_total",
			Help: "Stale paths removed by the janitor, by kind (workspace, artifact).",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Call once at startup;
// pool may be nil when history is kept in memory.
func Register(pool *pgxpool.Pool) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			JobsTotal,
			JobDuration,
			JobsInFlight,
			QuotaDecisions,
			RequestDuration,
			RequestsInFlight,
			JanitorRemoved,
		)

		// DB pool gauges read live stats from pgxpool
		if pool == nil {
			return
		}
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "socio_db_connection_pool_active",
					Help: "Number of active database connections.",
				},
				func() float64 { return float64(pool.Stat().AcquiredConns()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "socio_db_connection_pool_idle",
					Help: "Number of idle database connections.",
				},
				func() float64 { return float64(pool.Stat().IdleConns()) },
			),
		)
	})
}
