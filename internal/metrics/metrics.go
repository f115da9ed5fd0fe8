package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crimedb"

// Metrics holds the Prometheus collectors for source fetches, the fetch
// cache and backfill jobs.
type Metrics struct {
	FetchRequests *prometheus.CounterVec // labels: outcome={success,empty,error}
	FetchDuration prometheus.Histogram
	CacheLookups  *prometheus.CounterVec // labels: result={hit,miss}

	IncidentsInserted   prometheus.Counter
	BackfillMonths      prometheus.Counter
	BackfillJobsRunning prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      help("Crime source requests by outcome."),
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      help("Crime source request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cache_lookups_total",
			Help:      help("Fetch cache lookups by result."),
		}, []string{"result"}),
		IncidentsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_inserted_total",
			Help:      help("Incidents newly written to the store."),
		}),
		BackfillMonths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_months_total",
			Help:      help("Months fetched by backfill jobs."),
		}),
		BackfillJobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backfill_jobs_running",
			Help:      help("Backfill jobs currently running."),
		}),
	}
}

// New creates and registers all metrics with the default Prometheus registry.
func New() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.CacheLookups,
		m.IncidentsInserted,
		m.BackfillMonths,
		m.BackfillJobsRunning,
	)

	return m
}

// NewForTesting creates unregistered metrics so tests can build as many as
// they like.
func NewForTesting() *Metrics {
	return newMetrics(false)
}
