package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler triggers a full run once a day at a fixed local time.
type Scheduler struct {
	runner *Runner
	hour   int
	minute int
	loc    *time.Location
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewScheduler creates a daily scheduler firing at hour:minute in loc.
func NewScheduler(runner *Runner, hour, minute int, loc *time.Location, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{runner: runner, hour: hour, minute: minute, loc: loc, clock: clock, logger: logger}
}

// Next returns the first firing time strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}

// Run fires scheduled runs until ctx is cancelled. A firing that finds a run
// already in progress is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.clock.Now()
		next := s.Next(now)
		s.logger.Info("next scheduled run", "at", next)

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-timer.Chan():
		}

		_, err := s.runner.RunNow(ctx, TriggerSchedule, "")
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.logger.Warn("scheduled run skipped", "reason", err)
		case err != nil:
			s.logger.Error("scheduled run failed", "error", err)
		}
	}
}
