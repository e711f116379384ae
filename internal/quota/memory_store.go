package quota

import (
	"context"
	"sync"
	"time"

	"credgate/internal/models"
	"credgate/internal/storage"
)

// MemoryUsageStore is a mutex-backed UsageStore with the same rollover and
// ceiling semantics as the SQL store. It backs tests and local development;
// counters do not survive a restart.
type MemoryUsageStore struct {
	mu    sync.Mutex
	usage map[string]*models.Usage
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{usage: make(map[string]*models.Usage)}
}

func (s *MemoryUsageStore) AdmitAndCount(ctx context.Context, keyID, localDate string, dailyLimit, monthlyLimit int) (storage.AdmitResult, bool, error) {
	date, err := time.Parse(DateLayout, localDate)
	if err != nil {
		return storage.AdmitResult{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usage[keyID]
	if !ok {
		u = &models.Usage{APIKeyID: keyID}
		s.usage[keyID] = u
	}

	daily, monthly := EffectiveCounters(u, localDate)

	if dailyLimit > 0 && daily >= dailyLimit {
		return storage.AdmitResult{}, false, nil
	}
	if monthlyLimit > 0 && monthly >= monthlyLimit {
		return storage.AdmitResult{}, false, nil
	}

	u.TotalRequests++
	u.DailyRequests = daily + 1
	u.MonthlyRequests = monthly + 1
	u.LastRequestDate = date
	u.UpdatedAt = time.Now()

	return storage.AdmitResult{
		TotalRequests:   u.TotalRequests,
		DailyRequests:   u.DailyRequests,
		MonthlyRequests: u.MonthlyRequests,
	}, true, nil
}

func (s *MemoryUsageStore) Snapshot(ctx context.Context, keyID string) (*models.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usage[keyID]
	if !ok {
		return nil, storage.ErrUsageNotFound
	}
	copied := *u
	return &copied, nil
}
