package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"credgate/internal/quota"
	"credgate/internal/utils"
)

// UsageResetter zeroes stale counters for all keys in one timezone. Both
// resets take the timezone's current local date; only rows whose last
// request predates it are touched.
type UsageResetter interface {
	ResetDaily(ctx context.Context, timezone, localDate string) (int64, error)
	ResetMonthly(ctx context.Context, timezone, localDate string) (int64, error)
}

// KeyDirectory lists the distinct timezones across all keys.
type KeyDirectory interface {
	ListTimezones(ctx context.Context) ([]string, error)
}

// Pinger reports whether the counter store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes the reset cadence and batching.
type Config struct {
	CronSpec   string
	BatchSize  int
	BatchDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		CronSpec:   "0 * * * *",
		BatchSize:  5,
		BatchDelay: 100 * time.Millisecond,
	}
}

// ResetScheduler is the cleanup half of quota rollover. The admission path
// already rolls counters over atomically on first use of a new local day, so
// the scheduler's only job is zeroing counters of keys that stopped sending
// requests; it is never load-bearing for correctness.
type ResetScheduler struct {
	resetter  UsageResetter
	directory KeyDirectory
	pinger    Pinger
	config    Config
	logger    *utils.Logger
	cron      *cron.Cron
	running   atomic.Bool
	locations map[string]*time.Location
	now       func() time.Time
}

func NewResetScheduler(resetter UsageResetter, directory KeyDirectory, pinger Pinger, config Config) *ResetScheduler {
	if config.CronSpec == "" {
		config.CronSpec = DefaultConfig().CronSpec
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &ResetScheduler{
		resetter:  resetter,
		directory: directory,
		pinger:    pinger,
		config:    config,
		logger:    utils.NewLogger("scheduler"),
		cron:      cron.New(),
		locations: make(map[string]*time.Location),
		now:       time.Now,
	}
}

// Start registers the cron entry and begins scheduling.
func (s *ResetScheduler) Start() error {
	_, err := s.cron.AddFunc(s.config.CronSpec, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Reset scheduler started", "cron", s.config.CronSpec)
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *ResetScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Reset scheduler stopped")
}

// RunOnce performs a single reset sweep over all known timezones. Overlapping
// runs are skipped, as is the whole run when the store does not answer a
// ping; a failed timezone is logged and the sweep moves on.
func (s *ResetScheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous reset run still in progress, skipping")
		return
	}
	defer s.running.Store(false)

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("Counter store unreachable, skipping reset run", "error", err)
		return
	}

	timezones, err := s.directory.ListTimezones(ctx)
	if err != nil {
		s.logger.Error("Failed to list key timezones", "error", err)
		return
	}
	if len(timezones) == 0 {
		return
	}

	now := s.now()
	for i := 0; i < len(timezones); i += s.config.BatchSize {
		end := i + s.config.BatchSize
		if end > len(timezones) {
			end = len(timezones)
		}
		for _, tz := range timezones[i:end] {
			s.resetTimezone(ctx, tz, now)
		}
		if end < len(timezones) && s.config.BatchDelay > 0 {
			time.Sleep(s.config.BatchDelay)
		}
	}
}

func (s *ResetScheduler) resetTimezone(ctx context.Context, timezone string, now time.Time) {
	loc, ok := s.locations[timezone]
	if !ok {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			s.logger.Warn("Skipping unknown timezone", "timezone", timezone, "error", err)
			return
		}
		s.locations[timezone] = loc
	}

	local := now.In(loc)
	localDate := local.Format(quota.DateLayout)

	if n, err := s.resetter.ResetDaily(ctx, timezone, localDate); err != nil {
		s.logger.Error("Daily reset failed", "timezone", timezone, "error", err)
	} else if n > 0 {
		s.logger.Info("Daily counters reset", "timezone", timezone, "keys", n)
	}

	// The monthly reset only makes sense on the first local day; on any
	// other day every key's last request is trivially in the same month.
	if local.Day() == 1 {
		if n, err := s.resetter.ResetMonthly(ctx, timezone, localDate); err != nil {
			s.logger.Error("Monthly reset failed", "timezone", timezone, "error", err)
		} else if n > 0 {
			s.logger.Info("Monthly counters reset", "timezone", timezone, "keys", n)
		}
	}
}
