package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard backend.
type Metrics struct {
	FeedFetches *prometheus.CounterVec // labels: outcome={success,degraded}
	FeedEvents  prometheus.Gauge

	Imports *prometheus.CounterVec // labels: format={csv,xlsx}, outcome={success,schema_error,coercion_error,parse_error}

	AlertsFired   prometheus.Counter
	Notifications *prometheus.CounterVec // labels: channel={email,kafka}, outcome={success,error}

	Lookups     *prometheus.CounterVec // labels: outcome={success,error,empty}
	LookupCache *prometheus.CounterVec // labels: result={hit,miss}

	Logins *prometheus.CounterVec // labels: outcome={success,denied}

	HTTPDuration *prometheus.HistogramVec // labels: route
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedEvents,
		m.Imports,
		m.AlertsFired,
		m.Notifications,
		m.Lookups,
		m.LookupCache,
		m.Logins,
		m.HTTPDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismicguard",
			Name:      "feed_fetches_total",
			Help:      "Live feed fetch attempts by outcome; degraded means an empty table was substituted.",
		}, []string{"outcome"}),
		FeedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seismicguard",
			Name:      "feed_events",
			Help:      "Event count of the most recent successful live fetch.",
		}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismicguard",
			Name:      "imports_total",
			Help:      "User file imports by format and outcome.",
		}, []string{"format", "outcome"}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seismicguard",
			Name:      "alerts_fired_total",
			Help:      "Threshold alerts dispatched (at most one per session).",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismicguard",
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismicguard",
			Name:      "lookups_total",
			Help:      "External knowledge lookups by outcome.",
		}, []string{"outcome"}),
		LookupCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismicguard",
			Name:      "lookup_cache_total",
			Help:      "Knowledge lookup cache accesses by result.",
		}, []string{"result"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seismicguard",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seismicguard",
			Name:      "http_request_duration_seconds",
			Help:      "Request duration by route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
	}
}
