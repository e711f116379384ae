package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credgate/internal/auth"
	"credgate/internal/models"
	"credgate/internal/storage"
)

func newTestTracker(now time.Time) (*Tracker, *MemoryUsageStore) {
	store := NewMemoryUsageStore()
	tracker := NewTracker(store)
	tracker.now = func() time.Time { return now }
	return tracker, store
}

func testKey(daily, monthly int) *auth.APIKeyRecord {
	return &auth.APIKeyRecord{
		ID:           "key-1",
		UserID:       "user-1",
		Status:       "active",
		Scope:        []string{"all"},
		RateLimit:    1000,
		DailyLimit:   daily,
		MonthlyLimit: monthly,
		Timezone:     "UTC",
	}
}

func TestTracker_Admit(t *testing.T) {
	ctx := context.Background()

	t.Run("admits until daily limit then rejects", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		tracker, _ := newTestTracker(now)
		key := testKey(2, 0)

		result, err := tracker.Admit(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 1, result.DailyRequests)

		result, err = tracker.Admit(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 2, result.DailyRequests)

		_, err = tracker.Admit(ctx, key)
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, DimensionDaily, exceeded.Dimension)
	})

	t.Run("rejected request does not advance counters", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		tracker, store := newTestTracker(now)
		key := testKey(2, 0)

		for i := 0; i < 10; i++ {
			tracker.Admit(ctx, key)
		}

		snap, err := store.Snapshot(ctx, key.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), snap.TotalRequests)
		assert.Equal(t, 2, snap.DailyRequests)
		assert.Equal(t, 2, snap.MonthlyRequests)
	})

	t.Run("concurrent admits never exceed the ceiling", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		tracker, store := newTestTracker(now)
		key := testKey(10, 0)

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := tracker.Admit(ctx, key); err == nil {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, admitted)

		snap, err := store.Snapshot(ctx, key.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, snap.DailyRequests)
		assert.Equal(t, int64(10), snap.TotalRequests)
	})

	t.Run("daily counter rolls over at local midnight", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
		tracker, store := newTestTracker(now)
		key := testKey(2, 0)

		tracker.Admit(ctx, key)
		tracker.Admit(ctx, key)
		_, err := tracker.Admit(ctx, key)
		require.Error(t, err)

		// Cross midnight: the exhausted daily counter reads as zero again.
		tracker.now = func() time.Time {
			return time.Date(2026, 3, 16, 0, 0, 1, 0, time.UTC)
		}

		result, err := tracker.Admit(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 1, result.DailyRequests)
		assert.Equal(t, 3, result.MonthlyRequests)

		snap, err := store.Snapshot(ctx, key.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), snap.TotalRequests)
	})

	t.Run("monthly counter rolls over at the first of the month", func(t *testing.T) {
		now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
		tracker, _ := newTestTracker(now)
		key := testKey(0, 1)

		_, err := tracker.Admit(ctx, key)
		require.NoError(t, err)
		_, err = tracker.Admit(ctx, key)
		require.Error(t, err)

		tracker.now = func() time.Time {
			return time.Date(2026, 4, 1, 0, 0, 1, 0, time.UTC)
		}

		result, err := tracker.Admit(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 1, result.MonthlyRequests)
	})

	t.Run("daily retry-after reaches the next local midnight", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 23, 59, 30, 0, time.UTC)
		tracker, _ := newTestTracker(now)
		key := testKey(1, 0)

		_, err := tracker.Admit(ctx, key)
		require.NoError(t, err)

		_, err = tracker.Admit(ctx, key)
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, DimensionDaily, exceeded.Dimension)
		assert.Equal(t, 30*time.Second, exceeded.RetryAfter)
	})

	t.Run("both dimensions exhausted reports the nearer boundary", func(t *testing.T) {
		// The next local midnight is never later than the first of the
		// next month, so the daily wait is reported.
		now := time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC)
		tracker, _ := newTestTracker(now)
		key := testKey(1, 1)

		_, err := tracker.Admit(ctx, key)
		require.NoError(t, err)

		_, err = tracker.Admit(ctx, key)
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, DimensionDaily, exceeded.Dimension)
		assert.Equal(t, 30*time.Minute, exceeded.RetryAfter)
	})

	t.Run("monthly rejection waits for the next local month", func(t *testing.T) {
		now := time.Date(2026, 3, 30, 12, 0, 0, 0, time.UTC)
		tracker, _ := newTestTracker(now)
		key := testKey(0, 1)

		_, err := tracker.Admit(ctx, key)
		require.NoError(t, err)

		_, err = tracker.Admit(ctx, key)
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, DimensionMonthly, exceeded.Dimension)
		assert.Equal(t, 36*time.Hour, exceeded.RetryAfter)
	})

	t.Run("unknown timezone falls back to UTC", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		tracker, _ := newTestTracker(now)
		key := testKey(5, 0)
		key.Timezone = "Not/AZone"

		result, err := tracker.Admit(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 1, result.DailyRequests)
	})

	t.Run("boundaries follow the key's timezone", func(t *testing.T) {
		// 03:00 UTC is mid-evening the previous day in Los Angeles, so the
		// local midnight is hours away even though UTC midnight just passed.
		now := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
		tracker, _ := newTestTracker(now)
		key := testKey(1, 0)
		key.Timezone = "America/Los_Angeles"

		_, err := tracker.Admit(ctx, key)
		require.NoError(t, err)

		_, err = tracker.Admit(ctx, key)
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Greater(t, exceeded.RetryAfter, 2*time.Hour)
	})

	t.Run("store errors pass through", func(t *testing.T) {
		tracker := NewTracker(failingUsageStore{})
		_, err := tracker.Admit(ctx, testKey(1, 0))
		assert.Error(t, err)
		var exceeded *ExceededError
		assert.False(t, errors.As(err, &exceeded))
	})
}

type failingUsageStore struct{}

func (failingUsageStore) AdmitAndCount(ctx context.Context, keyID, localDate string, dailyLimit, monthlyLimit int) (storage.AdmitResult, bool, error) {
	return storage.AdmitResult{}, false, errors.New("store down")
}

func (failingUsageStore) Snapshot(ctx context.Context, keyID string) (*models.Usage, error) {
	return nil, errors.New("store down")
}
