package quota

import (
	"context"
	"fmt"
	"time"

	"credgate/internal/auth"
	"credgate/internal/models"
	"credgate/internal/storage"
	"credgate/internal/utils"
)

// Dimension names the quota that rejected a request.
type Dimension string

const (
	DimensionDaily   Dimension = "daily"
	DimensionMonthly Dimension = "monthly"
)

// ExceededError is the terminal rejection for an exhausted quota. It carries
// which dimension ran out and how long the caller has to wait for the next
// local boundary.
type ExceededError struct {
	Dimension  Dimension
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s request limit exceeded", e.Dimension)
}

// UsageStore is the atomic counter store behind the tracker. AdmitAndCount
// must perform the ceiling check, the day/month rollover and the increment
// as one atomic operation; see storage.UsageRepository for the SQL form and
// MemoryUsageStore for the in-process form.
type UsageStore interface {
	AdmitAndCount(ctx context.Context, keyID, localDate string, dailyLimit, monthlyLimit int) (storage.AdmitResult, bool, error)
	Snapshot(ctx context.Context, keyID string) (*models.Usage, error)
}

// Tracker decides whether one more request may be counted against a key's
// daily and monthly ceilings. All concurrency control lives in the store's
// atomic conditional update; the tracker itself holds no cross-request state
// beyond the timezone cache.
type Tracker struct {
	store     UsageStore
	locations *locationCache
	logger    *utils.Logger
	now       func() time.Time
}

// NewTracker creates a quota tracker over the given store.
func NewTracker(store UsageStore) *Tracker {
	return &Tracker{
		store:     store,
		locations: newLocationCache(256),
		logger:    utils.NewLogger("quota"),
		now:       time.Now,
	}
}

// location resolves a key's timezone, falling back to UTC on bad data so a
// misconfigured key degrades to UTC boundaries instead of failing requests.
func (t *Tracker) location(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := t.locations.Load(timezone)
	if err != nil {
		t.logger.Warn("Invalid key timezone, using UTC", "timezone", timezone, "error", err)
		return time.UTC
	}
	return loc
}

// Admit atomically counts one request for the key, or rejects it with an
// ExceededError carrying dimension and retry-after. A rejected request
// mutates no counter. Ceilings of zero or less are unlimited; admitted
// requests always count toward the lifetime total.
func (t *Tracker) Admit(ctx context.Context, key *auth.APIKeyRecord) (storage.AdmitResult, error) {
	loc := t.location(key.Timezone)
	nowLocal := t.now().In(loc)
	localDate := nowLocal.Format(DateLayout)

	// Two attempts: a rejection can race a scheduler reset, in which case
	// the snapshot shows no exhausted dimension and the conditional update
	// is simply retried once against the fresh counters.
	for attempt := 0; attempt < 2; attempt++ {
		result, admitted, err := t.store.AdmitAndCount(ctx, key.ID, localDate, key.DailyLimit, key.MonthlyLimit)
		if err != nil {
			return storage.AdmitResult{}, err
		}
		if admitted {
			return result, nil
		}

		exceeded, err := t.classify(ctx, key, nowLocal, localDate)
		if err != nil {
			return storage.AdmitResult{}, err
		}
		if exceeded != nil {
			return storage.AdmitResult{}, exceeded
		}
	}

	return storage.AdmitResult{}, fmt.Errorf("quota admission did not converge for key %s", key.ID)
}

// classify determines which dimension rejected the request and its
// retry-after. Returns nil when neither dimension is exhausted anymore.
func (t *Tracker) classify(ctx context.Context, key *auth.APIKeyRecord, nowLocal time.Time, localDate string) (*ExceededError, error) {
	snap, err := t.store.Snapshot(ctx, key.ID)
	if err != nil {
		if err == storage.ErrUsageNotFound {
			return nil, nil
		}
		return nil, err
	}

	daily, monthly := EffectiveCounters(snap, localDate)
	dailyExceeded := key.DailyLimit > 0 && daily >= key.DailyLimit
	monthlyExceeded := key.MonthlyLimit > 0 && monthly >= key.MonthlyLimit

	switch {
	case dailyExceeded && monthlyExceeded:
		dailyWait := UntilLocalMidnight(nowLocal)
		monthlyWait := UntilNextLocalMonth(nowLocal)
		if monthlyWait < dailyWait {
			return &ExceededError{Dimension: DimensionMonthly, RetryAfter: monthlyWait}, nil
		}
		return &ExceededError{Dimension: DimensionDaily, RetryAfter: dailyWait}, nil
	case dailyExceeded:
		return &ExceededError{Dimension: DimensionDaily, RetryAfter: UntilLocalMidnight(nowLocal)}, nil
	case monthlyExceeded:
		return &ExceededError{Dimension: DimensionMonthly, RetryAfter: UntilNextLocalMonth(nowLocal)}, nil
	default:
		return nil, nil
	}
}

// Snapshot returns the stored counters plus the key's local date, for the
// admin usage view. Keys that never made a request report zeroes.
func (t *Tracker) Snapshot(ctx context.Context, key *auth.APIKeyRecord) (*models.Usage, string, error) {
	loc := t.location(key.Timezone)
	localDate := t.now().In(loc).Format(DateLayout)

	snap, err := t.store.Snapshot(ctx, key.ID)
	if err != nil {
		if err == storage.ErrUsageNotFound {
			return &models.Usage{}, localDate, nil
		}
		return nil, "", err
	}
	return snap, localDate, nil
}

// EffectiveCounters projects stored counters onto the given local date:
// counters whose last-request date fell in an earlier local day or month
// read as zero, exactly as the atomic rollover would reset them.
func EffectiveCounters(u *models.Usage, localDate string) (daily, monthly int) {
	if u.TotalRequests == 0 {
		return 0, 0
	}
	if sameLocalDay(u.LastRequestDate, localDate) {
		daily = u.DailyRequests
	}
	if sameLocalMonth(u.LastRequestDate, localDate) {
		monthly = u.MonthlyRequests
	}
	return daily, monthly
}
