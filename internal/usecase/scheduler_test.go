package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InfoDigest/internal/ratelimit"
)

type captureDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *captureDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *captureDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

type gaugeSpy struct{ last int }

func (g *gaugeSpy) LimiterUsers(n int) { g.last = n }

func TestSchedulerSweepsIdleWindows(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	limiter := ratelimit.New(time.Minute, 5, ratelimit.WithClock(clock.Now))
	limiter.CheckAndRecord("idle")
	clock.Advance(30 * time.Second)
	limiter.CheckAndRecord("active")
	clock.Advance(45 * time.Second)

	driver := &captureDriver{}
	gauge := &gaugeSpy{}
	s := NewScheduler(driver, limiter, gauge, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(clock.Now())
	assert.Equal(t, 1, limiter.Users())
	assert.Equal(t, 1, gauge.last)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerWithoutDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
