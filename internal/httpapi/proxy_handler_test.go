package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credgate/internal/auth"
	"credgate/internal/middleware"
	"credgate/internal/models"
)

func TestProxyHandler(t *testing.T) {
	t.Run("strips credentials and annotates the key identity", func(t *testing.T) {
		var got http.Header
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"results":[]}`))
		}))
		defer upstream.Close()

		target, err := url.Parse(upstream.URL)
		require.NoError(t, err)
		proxy := NewProxyHandler(target)

		record := &auth.APIKeyRecord{
			ID:     "key-1",
			UserID: "user-1",
			Status: models.StatusActive,
		}

		req := httptest.NewRequest("GET", "/api/v1/search?q=test", nil)
		req.Header.Set("api-key", "plaintext-secret")
		req.Header.Set("Authorization", "Bearer plaintext-secret")
		req = req.WithContext(context.WithValue(req.Context(), middleware.APIKeyRecordKey, record))

		w := httptest.NewRecorder()
		proxy.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, got.Get("api-key"))
		assert.Empty(t, got.Get("X-API-Key"))
		assert.Empty(t, got.Get("Authorization"))
		assert.Equal(t, "key-1", got.Get("X-API-Key-ID"))
		assert.Equal(t, "user-1", got.Get("X-User-ID"))
	})

	t.Run("unreachable upstream answers 502", func(t *testing.T) {
		target, err := url.Parse("http://127.0.0.1:1")
		require.NoError(t, err)
		proxy := NewProxyHandler(target)

		req := httptest.NewRequest("GET", "/api/v1/search", nil)
		w := httptest.NewRecorder()
		proxy.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}
