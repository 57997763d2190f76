package usecase

import (
	"context"
	"log/slog"
	"time"

	"InfoDigest/internal/ports"
)

// WindowSweeper drops idle rate-limit windows.
type WindowSweeper interface {
	Sweep() int
	Users() int
}

// LimiterGauge publishes how many users the limiter tracks.
type LimiterGauge interface {
	LimiterUsers(n int)
}

// Scheduler wires the cron driver with periodic maintenance.
type Scheduler struct {
	driver  ports.Scheduler
	limiter WindowSweeper
	gauge   LimiterGauge
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, limiter WindowSweeper, gauge LimiterGauge, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, limiter: limiter, gauge: gauge, logger: logger}
}

// Start registers the maintenance job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.limiter == nil {
		return nil
	}
	return s.driver.Start(ctx, s.Maintain)
}

// Maintain sweeps idle limiter windows once.
func (s *Scheduler) Maintain(trigger time.Time) {
	removed := s.limiter.Sweep()
	users := s.limiter.Users()
	if s.gauge != nil {
		s.gauge.LimiterUsers(users)
	}
	if s.logger != nil {
		s.logger.Debug("rate-limit sweep", "trigger", trigger, "removed", removed, "users", users)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
