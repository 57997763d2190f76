package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiterDeniesAfterMaxAndRecovers(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New(time.Minute, 5, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		d := l.CheckAndRecord("alice")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
		clock.Advance(time.Second)
	}

	denied := l.CheckAndRecord("alice")
	require.False(t, denied.Allowed)
	assert.Equal(t, 55*time.Second, denied.RetryAfter)
	assert.Equal(t, 55, RetryAfterSeconds(denied.RetryAfter))

	clock.Advance(denied.RetryAfter)
	assert.True(t, l.CheckAndRecord("alice").Allowed)
}

func TestLimiterDeniedRequestsAreNotRecorded(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New(10*time.Second, 1, WithClock(clock.Now))

	require.True(t, l.CheckAndRecord("bob").Allowed)
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		require.False(t, l.CheckAndRecord("bob").Allowed)
	}

	clock.Advance(7 * time.Second)
	assert.True(t, l.CheckAndRecord("bob").Allowed)
}

func TestLimiterUsersAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(time.Minute, 1, WithClock(newClock().Now))

	assert.True(t, l.CheckAndRecord("a").Allowed)
	assert.False(t, l.CheckAndRecord("a").Allowed)
	assert.True(t, l.CheckAndRecord("b").Allowed)
}

func TestLimiterConcurrentSameUser(t *testing.T) {
	t.Parallel()

	l := New(time.Minute, 5, WithClock(newClock().Now))

	var (
		allowed atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndRecord("carol").Allowed {
				allowed.Add(1)
			}
			l.CheckAndRecord("someone-else")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
}

func TestLimiterSweep(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New(time.Minute, 5, WithClock(clock.Now))

	l.CheckAndRecord("idle")
	clock.Advance(30 * time.Second)
	l.CheckAndRecord("active")
	clock.Advance(31 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Users())
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, RetryAfterSeconds(1001*time.Millisecond))
	assert.Equal(t, 60, RetryAfterSeconds(time.Minute))
}
