package middleware

import (
	"net/http"
	"time"

	"credgate/internal/logging"
	"credgate/internal/models"
)

// statusRecorder captures the response status for the audit entry.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// RequestLoggerMiddleware enqueues one audit entry per authenticated
// request after the response is written. Enqueue never blocks; when the
// worker's buffer is full the entry is dropped.
func RequestLoggerMiddleware(worker *logging.Worker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			record, ok := GetAPIKeyRecord(r.Context())
			if !ok {
				// Unauthenticated rejections have no key to attribute.
				return
			}

			worker.Enqueue(models.RequestLog{
				APIKeyID:       record.ID,
				Endpoint:       r.URL.Path,
				Method:         r.Method,
				StatusCode:     rec.status,
				ResponseTimeMS: int(time.Since(start).Milliseconds()),
				IPAddress:      clientIP(r),
				UserAgent:      r.UserAgent(),
				Timestamp:      start,
			})
		})
	}
}
