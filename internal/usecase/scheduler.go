package usecase

import (
	"context"

	"NewsStream/internal/ports"
)

// Scheduler wires the interval driver with the poll cycle.
type Scheduler struct {
	driver ports.Scheduler
	poller *Poller
}

// NewScheduler returns a helper to start/stop the recurring poll loop.
func NewScheduler(driver ports.Scheduler, poller *Poller) *Scheduler {
	return &Scheduler{driver: driver, poller: poller}
}

// Start registers the poll cycle with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.poller == nil {
		return nil
	}

	return s.driver.Start(ctx, s.poller.RunCycle)
}

// Stop cancels the loop and waits for the running cycle to unwind.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
