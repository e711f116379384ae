package middleware

import (
	"errors"
	"net/http"

	"credgate/internal/metrics"
	"credgate/internal/quota"
	"credgate/internal/utils"
)

// QuotaMiddleware counts the request against the key's daily and monthly
// ceilings. The tracker's conditional update admits and counts atomically,
// so a rejected request never consumes budget. Must run after
// APIKeyMiddleware and after the rate limiter, so quota budget is not
// burned by requests the limiter would have rejected anyway.
func QuotaMiddleware(tracker *quota.Tracker) func(http.Handler) http.Handler {
	logger := utils.NewLogger("quota")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, ok := GetAPIKeyRecord(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "API key is required")
				return
			}

			_, err := tracker.Admit(r.Context(), record)
			if err != nil {
				var exceeded *quota.ExceededError
				if errors.As(err, &exceeded) {
					logger.Warn("Request rejected", "key_id", record.ID, "limit", string(exceeded.Dimension))
					switch exceeded.Dimension {
					case quota.DimensionMonthly:
						metrics.RecordRejection("quota_monthly")
						utils.RespondWithRetry(w, "Too Many Requests", "Monthly request limit exceeded", exceeded.RetryAfter)
					default:
						metrics.RecordRejection("quota_daily")
						utils.RespondWithRetry(w, "Too Many Requests", "Daily request limit exceeded", exceeded.RetryAfter)
					}
					return
				}

				metrics.RecordStoreError("database")
				logger.Error("Quota store unavailable", "key_id", record.ID, "error", err)
				utils.RespondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
