package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultWindow is the rolling window used when none is configured.
const DefaultWindow = 60 * time.Second

const keyPrefix = "ratelimit:"

// slidingLogScript implements a sliding-log limiter over sorted sets of
// request timestamps (milliseconds). All subjects are checked before any is
// recorded, so a rejected request leaves no trace in any window and the
// whole multi-subject decision is atomic.
//
// KEYS: one sorted set per subject. ARGV: now_ms, window_ms, member, then
// one limit per key (<= 0 means unlimited for that subject).
// Returns {allowed, tightest_remaining, retry_or_reset_ms}.
var slidingLogScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]
local cutoff = now - window
local tightest = -1

for i, key in ipairs(KEYS) do
	local limit = tonumber(ARGV[3 + i])
	if limit > 0 then
		redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
		local count = redis.call('ZCARD', key)
		if count >= limit then
			local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
			local retry = window
			if oldest[2] then
				retry = tonumber(oldest[2]) + window - now
			end
			if retry < 0 then
				retry = 0
			end
			return {0, 0, retry}
		end
		local remaining = limit - count - 1
		if tightest < 0 or remaining < tightest then
			tightest = remaining
		end
	end
end

if tightest < 0 then
	return {1, -1, 0}
end

for i, key in ipairs(KEYS) do
	local limit = tonumber(ARGV[3 + i])
	if limit > 0 then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window)
	end
end

return {1, tightest, window}
`)

// Check is one (subject, ceiling) pair to evaluate.
type Check struct {
	Subject string
	Limit   int // requests per window, <= 0 = unlimited
}

// Decision is the combined outcome across all evaluated subjects.
// Remaining is the tightest budget among them, -1 when every subject
// is unlimited.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RateLimiter enforces rolling-window ceilings backed by Redis. The Redis
// state is the source of truth for short-window counters; callers decide
// what happens when it is unreachable.
type RateLimiter struct {
	client *redis.Client
	window time.Duration
}

// NewRateLimiter creates a limiter with the default 60s window.
func NewRateLimiter(client *redis.Client, window ...time.Duration) *RateLimiter {
	w := DefaultWindow
	if len(window) > 0 && window[0] > 0 {
		w = window[0]
	}
	return &RateLimiter{client: client, window: w}
}

// Allow evaluates every check atomically and admits the request only when
// all subjects are under their ceilings. Nothing is recorded on rejection.
func (l *RateLimiter) Allow(ctx context.Context, checks ...Check) (*Decision, error) {
	if len(checks) == 0 {
		return &Decision{Allowed: true, Remaining: -1}, nil
	}

	now := time.Now()
	keys := make([]string, 0, len(checks))
	args := []interface{}{
		now.UnixMilli(),
		l.window.Milliseconds(),
		uuid.NewString(),
	}
	for _, c := range checks {
		keys = append(keys, keyPrefix+c.Subject)
		args = append(args, c.Limit)
	}

	result, err := slidingLogScript.Run(ctx, l.client, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected response from rate limit script: %v", result)
	}

	allowed := values[0].(int64) == 1
	remaining := int(values[1].(int64))
	ms := values[2].(int64)

	decision := &Decision{
		Allowed:   allowed,
		Remaining: remaining,
	}
	if ms > 0 {
		decision.RetryAfter = time.Duration(ms) * time.Millisecond
		decision.ResetAt = now.Add(decision.RetryAfter)
	}

	return decision, nil
}

// AllowWithDetails evaluates a single subject and unpacks the decision.
func (l *RateLimiter) AllowWithDetails(ctx context.Context, subject string, limit int) (bool, int, time.Time, error) {
	decision, err := l.Allow(ctx, Check{Subject: subject, Limit: limit})
	if err != nil {
		return false, 0, time.Time{}, err
	}
	return decision.Allowed, decision.Remaining, decision.ResetAt, nil
}

// Reset clears the window for a subject.
func (l *RateLimiter) Reset(ctx context.Context, subject string) error {
	return l.client.Del(ctx, keyPrefix+subject).Err()
}
