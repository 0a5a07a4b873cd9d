package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	SearchesTotal   *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	QuotesReturned  prometheus.Histogram
	ActiveSearches  prometheus.Gauge
	QuotaDropsTotal prometheus.Counter

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	ProviderErrors  *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec

	BookingsTotal   *prometheus.CounterVec
	AlertsTriggered prometheus.Counter

	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	Registry            *prometheus.Registry
}

// Create Prometheus collectors and register them
func NewMetrics(p *prometheus.Registry) *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farescout_searches_total",
			Help: "Searches by outcome (completed, partial, failed, cancelled, cached)",
		}, []string{"outcome"},
		),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "farescout_search_duration_seconds",
			Help:    "End-to-end search latency including fan-out",
			Buckets: prometheus.DefBuckets,
		}),
		QuotesReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "farescout_quotes_returned",
			Help:    "Quotes per completed comparison",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}),
		ActiveSearches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "farescout_active_searches",
			Help: "Searches currently in flight",
		}),
		QuotaDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farescout_quota_drops_total",
			Help: "Searches rejected by the quota guard",
		}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farescout_cache_hits_total",
			Help: "Cache hits by layer (provider, aggregate)",
		}, []string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farescout_cache_misses_total",
			Help: "Cache misses by layer (provider, aggregate)",
		}, []string{"layer"},
		),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farescout_provider_errors_total",
			Help: "Errors returned by each provider, by kind",
		}, []string{"provider", "kind"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "farescout_provider_latency_ms",
				Help:    "Latency between aggregator and provider",
				Buckets: prometheus.LinearBuckets(5, 50, 15),
			},
			[]string{"provider"},
		),
		BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farescout_bookings_total",
			Help: "Booking confirmations by status",
		}, []string{"status"},
		),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farescout_alerts_triggered_total",
			Help: "Price alerts that crossed their threshold and fired",
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		Registry: p,
	}

	// Register metrics with Prometheus
	p.MustRegister(
		m.SearchesTotal,
		m.SearchDuration,
		m.QuotesReturned,
		m.ActiveSearches,
		m.QuotaDropsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ProviderErrors,
		m.ProviderLatency,
		m.BookingsTotal,
		m.AlertsTriggered,
		m.HTTPRequestDuration,
		m.HTTPRequestsTotal,
	)

	return m
}

func (m *Metrics) IncSearch(outcome string) { m.SearchesTotal.WithLabelValues(outcome).Inc() }

func (m *Metrics) ObserveSearchDuration(seconds float64) { m.SearchDuration.Observe(seconds) }

func (m *Metrics) ObserveQuotes(n int) { m.QuotesReturned.Observe(float64(n)) }

func (m *Metrics) SearchStarted()  { m.ActiveSearches.Inc() }
func (m *Metrics) SearchFinished() { m.ActiveSearches.Dec() }

func (m *Metrics) IncQuotaDrops() { m.QuotaDropsTotal.Inc() }

func (m *Metrics) IncCacheHit(layer string)  { m.CacheHitsTotal.WithLabelValues(layer).Inc() }
func (m *Metrics) IncCacheMiss(layer string) { m.CacheMissesTotal.WithLabelValues(layer).Inc() }

func (m *Metrics) IncProviderFailure(provider, kind string) {
	m.ProviderErrors.WithLabelValues(provider, kind).Inc()
}

func (m *Metrics) ObserveProviderLatency(provider string, ms float64) {
	m.ProviderLatency.WithLabelValues(provider).Observe(ms)
}

func (m *Metrics) IncBooking(status string) { m.BookingsTotal.WithLabelValues(status).Inc() }

func (m *Metrics) IncAlertTriggered() { m.AlertsTriggered.Inc() }

func (m *Metrics) ObserveHTTPRequestDuration(method string, path string, status string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

func (m *Metrics) IncHTTPRequestsTotal(method string, path string, status string) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
