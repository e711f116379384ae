package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilLocalMidnight(t *testing.T) {
	t.Run("seconds before midnight", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 23, 59, 30, 0, time.UTC)
		assert.Equal(t, 30*time.Second, UntilLocalMidnight(now))
	})

	t.Run("start of day", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 24*time.Hour, UntilLocalMidnight(now))
	})

	t.Run("uses the time's own location", func(t *testing.T) {
		loc, err := time.LoadLocation("Asia/Tokyo")
		require.NoError(t, err)
		now := time.Date(2026, 3, 15, 23, 0, 0, 0, loc)
		assert.Equal(t, time.Hour, UntilLocalMidnight(now))
	})
}

func TestUntilNextLocalMonth(t *testing.T) {
	t.Run("last day of the month", func(t *testing.T) {
		now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Hour, UntilNextLocalMonth(now))
	})

	t.Run("spans december into january", func(t *testing.T) {
		now := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
		assert.Equal(t, time.Minute, UntilNextLocalMonth(now))
	})

	t.Run("february in a leap year", func(t *testing.T) {
		now := time.Date(2028, 2, 28, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 48*time.Hour, UntilNextLocalMonth(now))
	})
}

func TestLocationCache(t *testing.T) {
	t.Run("caches loaded locations", func(t *testing.T) {
		cache := newLocationCache(4)

		first, err := cache.Load("Europe/Berlin")
		require.NoError(t, err)
		second, err := cache.Load("Europe/Berlin")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		cache := newLocationCache(4)
		_, err := cache.Load("Not/AZone")
		assert.Error(t, err)
	})

	t.Run("evicts beyond capacity", func(t *testing.T) {
		cache := newLocationCache(2)
		for _, name := range []string{"UTC", "Europe/Berlin", "Asia/Tokyo"} {
			_, err := cache.Load(name)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, cache.evictionList.Len())
	})
}
