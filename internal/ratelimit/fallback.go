package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxFallbackSubjects caps the bucket map so a Redis outage cannot grow
// it without bound; past the cap the map starts over.
const maxFallbackSubjects = 100000

// LocalLimiter is the in-process backstop used when the gateway is
// configured to fail open and the rate-limit store is unreachable. It is
// per-process, so with multiple gateway workers the effective ceiling is
// roughly limit * workers; that is accepted for a degraded mode whose
// alternative is no ceiling at all.
type LocalLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter creates a backstop limiter for the given window.
func NewLocalLimiter(window time.Duration) *LocalLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &LocalLimiter{
		window:  window,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the subject is under its ceiling in this process.
// A ceiling of zero or less is unlimited.
func (l *LocalLimiter) Allow(subject string, limit int) bool {
	if limit <= 0 {
		return true
	}

	l.mu.Lock()
	if len(l.buckets) >= maxFallbackSubjects {
		l.buckets = make(map[string]*rate.Limiter)
	}
	bucket, ok := l.buckets[subject]
	if !ok {
		bucket = rate.NewLimiter(rate.Every(l.window/time.Duration(limit)), limit)
		l.buckets[subject] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}
