package middleware

import (
	"context"
	"net/http"
	"strings"

	"credgate/internal/auth"
	"credgate/internal/utils"
)

const (
	// AdminSubjectKey is the context key for the authenticated admin subject
	AdminSubjectKey ContextKey = "adminSubject"
)

// AdminJWTMiddleware validates admin JWT tokens on the management surface.
func AdminJWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			subject, err := auth.ValidateAdminToken(secret, tokenString)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), AdminSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminSubject retrieves the admin subject from the request context
func GetAdminSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(AdminSubjectKey).(string)
	return subject, ok
}
