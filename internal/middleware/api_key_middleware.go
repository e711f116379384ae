package middleware

import (
	"context"
	"net/http"
	"strings"

	"credgate/internal/auth"
	"credgate/internal/metrics"
	"credgate/internal/utils"
)

// extractAPIKey pulls the key from the request. The api-key header is the
// primary form; X-API-Key and Authorization: Bearer are accepted for
// clients that cannot set custom headers.
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("api-key"); key != "" {
		return key
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// APIKeyMiddleware validates API keys for protected routes and adds the key
// record to the request context. Inactive keys answer exactly like unknown
// ones so probing cannot distinguish a suspended key from a nonexistent one.
func APIKeyMiddleware(store auth.APIKeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := extractAPIKey(r)
			if apiKey == "" {
				metrics.RecordRejection("auth")
				utils.RespondWithError(w, http.StatusUnauthorized, "API key is required")
				return
			}

			ctx := r.Context()
			record, err := store.Lookup(ctx, apiKey)
			if err != nil {
				switch err {
				case auth.ErrKeyNotFound, auth.ErrKeyInactive:
					metrics.RecordRejection("auth")
					utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
				case auth.ErrStoreUnavailable:
					metrics.RecordStoreError("database")
					utils.RespondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				default:
					utils.RespondWithError(w, http.StatusInternalServerError, "Error validating API key")
				}
				return
			}

			if !record.Active() {
				metrics.RecordRejection("auth")
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}

			ctx = context.WithValue(ctx, APIKeyRecordKey, record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
