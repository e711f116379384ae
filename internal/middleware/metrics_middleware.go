package middleware

import (
	"net/http"
	"strconv"
	"time"

	"credgate/internal/metrics"
)

// MetricsMiddleware records request counts and latency for Prometheus.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			metrics.RecordRequest(r.Method, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}
