package httpapi

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"credgate/internal/middleware"
	"credgate/internal/utils"
)

// NewProxyHandler builds the reverse proxy that forwards admitted requests
// to the upstream search API. Credentials are stripped before forwarding;
// the upstream sees the key's id in X-API-Key-ID and the user in X-User-ID.
func NewProxyHandler(upstream *url.URL) http.Handler {
	logger := utils.NewLogger("proxy")

	proxy := httputil.NewSingleHostReverseProxy(upstream)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = upstream.Host

		req.Header.Del("api-key")
		req.Header.Del("X-API-Key")
		req.Header.Del("Authorization")

		if record, ok := middleware.GetAPIKeyRecord(req.Context()); ok {
			req.Header.Set("X-API-Key-ID", record.ID)
			req.Header.Set("X-User-ID", record.UserID)
		}
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("Upstream request failed", "path", r.URL.Path, "error", err)
		utils.RespondWithError(w, http.StatusBadGateway, "Upstream service unavailable")
	}

	return proxy
}
