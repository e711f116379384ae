package middleware

import (
	"net/http"

	"credgate/internal/auth"
	"credgate/internal/metrics"
	"credgate/internal/utils"
)

// ScopeMiddleware rejects requests whose path falls outside the key's
// allowed endpoints. Must run after APIKeyMiddleware.
func ScopeMiddleware() func(http.Handler) http.Handler {
	logger := utils.NewLogger("scope")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, ok := GetAPIKeyRecord(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "API key is required")
				return
			}

			if !auth.ScopeAllows(record.Scope, r.URL.Path) {
				metrics.RecordRejection("scope")
				logger.Warn("Request rejected", "key_id", record.ID, "limit", "scope", "path", r.URL.Path)
				utils.RespondWithError(w, http.StatusForbidden, "API key does not have access to this endpoint")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
