package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"credgate/internal/utils"
)

// RecoveryMiddleware converts handler panics into 500 responses so one bad
// request cannot take the gateway down. Panic detail only reaches the
// response body outside production.
func RecoveryMiddleware(production bool) func(http.Handler) http.Handler {
	logger := utils.NewLogger("recovery")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic while serving request",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", err,
						"stack", string(debug.Stack()),
					)
					utils.RespondWithServerError(w, http.StatusInternalServerError, fmt.Sprintf("%v", err), production)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
