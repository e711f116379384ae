package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"credgate/internal/metrics"
	"credgate/internal/ratelimit"
	"credgate/internal/utils"
)

// Limiter is the distributed sliding-window limiter behind the middleware.
type Limiter interface {
	Allow(ctx context.Context, checks ...ratelimit.Check) (*ratelimit.Decision, error)
}

// RateLimitConfig tunes the per-key and per-address ceilings and the policy
// when the limiter store is unreachable.
type RateLimitConfig struct {
	PerAddressLimit int
	FailClosed      bool
}

// RateLimitMiddleware enforces the key's per-minute ceiling and a shared
// per-address ceiling in one atomic decision. When the limiter store is
// down, policy decides: fail closed answers 503, fail open falls back to a
// per-process limiter so a store outage does not remove ceilings entirely.
func RateLimitMiddleware(limiter Limiter, fallback *ratelimit.LocalLimiter, config RateLimitConfig) func(http.Handler) http.Handler {
	logger := utils.NewLogger("ratelimit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, ok := GetAPIKeyRecord(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "API key is required")
				return
			}

			checks := []ratelimit.Check{
				{Subject: "key:" + record.ID, Limit: record.RateLimit},
			}
			addr := clientIP(r)
			if addr != "" && config.PerAddressLimit > 0 {
				checks = append(checks, ratelimit.Check{Subject: "addr:" + addr, Limit: config.PerAddressLimit})
			}

			decision, err := limiter.Allow(r.Context(), checks...)
			if err != nil {
				metrics.RecordStoreError("redis")
				logger.Error("Rate limit store unavailable", "error", err)
				if config.FailClosed {
					utils.RespondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
					return
				}
				for _, check := range checks {
					if !fallback.Allow(check.Subject, check.Limit) {
						metrics.RecordRejection("rate_limit")
						logger.Warn("Request rejected", "key_id", record.ID, "limit", "rate", "mode", "fallback")
						utils.RespondWithRetry(w, "Too Many Requests", "Rate limit exceeded", ratelimit.DefaultWindow)
						return
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				metrics.RecordRejection("rate_limit")
				logger.Warn("Request rejected", "key_id", record.ID, "limit", "rate")
				utils.RespondWithRetry(w, "Too Many Requests", "Rate limit exceeded", decision.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the requesting address, preferring the first entry of
// X-Forwarded-For set by the fronting proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
