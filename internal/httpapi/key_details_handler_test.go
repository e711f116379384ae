package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credgate/internal/auth"
	"credgate/internal/middleware"
	"credgate/internal/models"
	"credgate/internal/quota"
)

func detailsRequest(record *auth.APIKeyRecord) *http.Request {
	req := httptest.NewRequest("GET", "/key/details", nil)
	ctx := context.WithValue(req.Context(), middleware.APIKeyRecordKey, record)
	return req.WithContext(ctx)
}

func TestKeyDetailsHandler(t *testing.T) {
	record := &auth.APIKeyRecord{
		ID:           uuid.New().String(),
		UserID:       "user-1",
		Status:       models.StatusActive,
		Scope:        []string{"/api/v1/search"},
		RateLimit:    1000,
		DailyLimit:   100,
		MonthlyLimit: 0,
		Timezone:     "UTC",
	}

	t.Run("reports zero usage for a fresh key", func(t *testing.T) {
		tracker := quota.NewTracker(quota.NewMemoryUsageStore())
		h := NewKeyDetailsHandler(tracker)

		w := httptest.NewRecorder()
		h.Details(w, detailsRequest(record))
		require.Equal(t, http.StatusOK, w.Code)

		var resp KeyDetailsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, "user-1", resp.UserID)
		assert.Equal(t, int64(0), resp.Usage.TotalRequests)
		assert.Equal(t, 100, resp.Usage.DailyRemaining)
		assert.Equal(t, -1, resp.Usage.MonthlyRemaining)
	})

	t.Run("reports consumed and remaining budget", func(t *testing.T) {
		store := quota.NewMemoryUsageStore()
		tracker := quota.NewTracker(store)
		h := NewKeyDetailsHandler(tracker)

		for i := 0; i < 3; i++ {
			_, err := tracker.Admit(context.Background(), record)
			require.NoError(t, err)
		}

		w := httptest.NewRecorder()
		h.Details(w, detailsRequest(record))
		require.Equal(t, http.StatusOK, w.Code)

		var resp KeyDetailsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, int64(3), resp.Usage.TotalRequests)
		assert.Equal(t, 3, resp.Usage.DailyRequests)
		assert.Equal(t, 97, resp.Usage.DailyRemaining)
	})

	t.Run("requires an authenticated key", func(t *testing.T) {
		tracker := quota.NewTracker(quota.NewMemoryUsageStore())
		h := NewKeyDetailsHandler(tracker)

		w := httptest.NewRecorder()
		h.Details(w, httptest.NewRequest("GET", "/key/details", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
