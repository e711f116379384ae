package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credgate/internal/auth"
	"credgate/internal/logging"
	"credgate/internal/models"
	"credgate/internal/quota"
	"credgate/internal/ratelimit"
	"credgate/internal/utils"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr
}

func withRecord(req *http.Request, record *auth.APIKeyRecord) *http.Request {
	ctx := context.WithValue(req.Context(), APIKeyRecordKey, record)
	return req.WithContext(ctx)
}

func TestScopeMiddleware(t *testing.T) {
	handler := ScopeMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	record := &auth.APIKeyRecord{
		ID:     "key-1",
		Status: models.StatusActive,
		Scope:  []string{"/api/v1/search"},
	}

	t.Run("allows a scoped path", func(t *testing.T) {
		req := withRecord(httptest.NewRequest("GET", "/api/v1/search/email", nil), record)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects a sibling prefix", func(t *testing.T) {
		// /api/v1/search-by-logindata shares a string prefix but not a
		// path segment, so it must be rejected.
		req := withRecord(httptest.NewRequest("GET", "/api/v1/search-by-logindata", nil), record)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rejects without a key record", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/search", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	record := &auth.APIKeyRecord{
		ID:        "key-rl",
		Status:    models.StatusActive,
		Scope:     []string{"all"},
		RateLimit: 2,
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("enforces the key ceiling", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := ratelimit.NewRateLimiter(client)
		fallback := ratelimit.NewLocalLimiter(time.Minute)
		handler := RateLimitMiddleware(limiter, fallback, RateLimitConfig{})(next)

		for i := 0; i < 2; i++ {
			req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
		}

		req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		var body utils.RetryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Rate limit exceeded", body.Message)
		assert.GreaterOrEqual(t, body.RetryAfter, int64(1))
	})

	t.Run("fail open falls back to the local limiter", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		limiter := ratelimit.NewRateLimiter(client)
		fallback := ratelimit.NewLocalLimiter(time.Minute)
		handler := RateLimitMiddleware(limiter, fallback, RateLimitConfig{FailClosed: false})(next)

		// Kill the store: the fallback takes over and still enforces
		// the ceiling per process.
		mr.Close()
		client.Close()

		admitted := 0
		for i := 0; i < 10; i++ {
			req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code == http.StatusOK {
				admitted++
			}
		}
		assert.Equal(t, 2, admitted)
	})

	t.Run("fail closed answers 503", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		limiter := ratelimit.NewRateLimiter(client)
		fallback := ratelimit.NewLocalLimiter(time.Minute)
		handler := RateLimitMiddleware(limiter, fallback, RateLimitConfig{FailClosed: true})(next)

		mr.Close()
		client.Close()

		req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestQuotaMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("admits then rejects at the daily ceiling", func(t *testing.T) {
		tracker := quota.NewTracker(quota.NewMemoryUsageStore())
		handler := QuotaMiddleware(tracker)(next)

		record := &auth.APIKeyRecord{
			ID:         "key-q",
			Status:     models.StatusActive,
			DailyLimit: 2,
			Timezone:   "UTC",
		}

		for i := 0; i < 2; i++ {
			req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
		}

		req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		var body utils.RetryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Daily request limit exceeded", body.Message)
		assert.GreaterOrEqual(t, body.RetryAfter, int64(1))
		assert.LessOrEqual(t, body.RetryAfter, int64(24*60*60))
	})

	t.Run("monthly rejection names the month", func(t *testing.T) {
		tracker := quota.NewTracker(quota.NewMemoryUsageStore())
		handler := QuotaMiddleware(tracker)(next)

		record := &auth.APIKeyRecord{
			ID:           "key-qm",
			Status:       models.StatusActive,
			MonthlyLimit: 1,
			Timezone:     "UTC",
		}

		req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		req = withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "Monthly request limit exceeded")
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	t.Run("answers 500 with detail outside production", func(t *testing.T) {
		handler := RecoveryMiddleware(false)(boom)

		req := httptest.NewRequest("GET", "/api/v1/search", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "boom")
	})

	t.Run("suppresses detail in production", func(t *testing.T) {
		handler := RecoveryMiddleware(true)(boom)

		req := httptest.NewRequest("GET", "/api/v1/search", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "boom")
	})
}

type captureLogStore struct {
	mu      sync.Mutex
	entries []models.RequestLog
}

func (s *captureLogStore) InsertBatch(ctx context.Context, entries []models.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func TestRequestLoggerMiddleware(t *testing.T) {
	t.Run("audits authenticated requests", func(t *testing.T) {
		store := &captureLogStore{}
		worker := logging.NewWorker(store, logging.Config{BatchSize: 1})
		worker.Start()

		handler := RequestLoggerMiddleware(worker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		record := &auth.APIKeyRecord{ID: "key-log", UserID: "user-1", Status: models.StatusActive}
		req := withRecord(httptest.NewRequest("GET", "/api/v1/search", nil), record)
		req.Header.Set("User-Agent", "test-agent")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		worker.Stop()

		store.mu.Lock()
		defer store.mu.Unlock()
		require.Len(t, store.entries, 1)
		entry := store.entries[0]
		assert.Equal(t, "key-log", entry.APIKeyID)
		assert.Equal(t, "/api/v1/search", entry.Endpoint)
		assert.Equal(t, http.StatusBadGateway, entry.StatusCode)
		assert.Equal(t, "test-agent", entry.UserAgent)
	})

	t.Run("skips unauthenticated requests", func(t *testing.T) {
		store := &captureLogStore{}
		worker := logging.NewWorker(store, logging.Config{BatchSize: 1})
		worker.Start()

		handler := RequestLoggerMiddleware(worker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/search", nil))

		worker.Stop()

		store.mu.Lock()
		defer store.mu.Unlock()
		assert.Empty(t, store.entries)
	})
}

func TestClientIP(t *testing.T) {
	t.Run("prefers the first forwarded address", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		assert.Equal(t, "203.0.113.7", clientIP(req))
	})

	t.Run("falls back to the remote address", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.5:4321"
		assert.Equal(t, "192.0.2.5", clientIP(req))
	})
}
