package ratelimit

import (
	"sync"
	"time"

	"InfoDigest/internal/ports"
)

const (
	DefaultWindow      = time.Minute
	DefaultMaxRequests = 5
)

// Limiter admits at most maxRequests per user within a trailing window.
// Windows are pruned lazily on every check and dropped entirely by Sweep.
type Limiter struct {
	mu          sync.Mutex
	windows     map[string][]time.Time
	window      time.Duration
	maxRequests int
	now         func() time.Time
}

var _ ports.RateLimiter = (*Limiter)(nil)

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds a limiter; non-positive values fall back to the defaults.
func New(window time.Duration, maxRequests int, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	l := &Limiter{
		windows:     map[string][]time.Time{},
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndRecord prunes the user's window and either records the request or
// reports how long until the oldest entry leaves the window.
func (l *Limiter) CheckAndRecord(userID string) ports.RateDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := prune(l.windows[userID], now.Add(-l.window))

	if len(stamps) >= l.maxRequests {
		l.windows[userID] = stamps
		retryAfter := stamps[0].Add(l.window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Nanosecond
		}
		return ports.RateDecision{Allowed: false, RetryAfter: retryAfter}
	}

	stamps = append(stamps, now)
	l.windows[userID] = stamps
	return ports.RateDecision{Allowed: true, Remaining: l.maxRequests - len(stamps)}
}

// Sweep forgets users with no requests inside the window and returns how
// many windows were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	dropped := 0
	for user, stamps := range l.windows {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.windows, user)
			dropped++
		}
	}
	return dropped
}

// Users returns the number of tracked windows.
func (l *Limiter) Users() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RetryAfterSeconds rounds a retry delay up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
