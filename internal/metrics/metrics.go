package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts proxied and rejected requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credgate_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration tracks end-to-end request latency in milliseconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credgate_request_duration_ms",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"method", "status"},
	)

	// RejectionsTotal counts admission rejections by reason: auth, scope,
	// rate_limit, quota_daily, quota_monthly.
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credgate_rejections_total",
			Help: "Total number of admission rejections",
		},
		[]string{"reason"},
	)

	// StoreErrors counts backend failures by store: database, redis.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credgate_store_errors_total",
			Help: "Total number of backing store errors",
		},
		[]string{"store"},
	)

	// CacheHits and CacheMisses track the API key cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credgate_key_cache_hits_total",
			Help: "Total number of API key cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credgate_key_cache_misses_total",
			Help: "Total number of API key cache misses",
		},
	)
)

// RecordRequest records one completed request.
func RecordRequest(method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, status).Inc()
	RequestDuration.WithLabelValues(method, status).Observe(float64(duration.Milliseconds()))
}

// RecordRejection records an admission rejection.
func RecordRejection(reason string) {
	RejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordStoreError records a backend failure.
func RecordStoreError(store string) {
	StoreErrors.WithLabelValues(store).Inc()
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
