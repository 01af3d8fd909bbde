// Package scheduler runs the refresh cycle on a fixed cadence for the
// long-running process. Serverless deployments trigger cycles externally.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval with the scheduled run time.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// RunOnStart fires one refresh as soon as the startup delay elapses,
	// before waiting for the first boundary.
	RunOnStart bool
}

// Scheduler drives periodic forecast refreshes, optionally aligned to
// interval boundaries so that every replica ticks at the same instant.
type Scheduler struct {
	opts   Options
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs a Scheduler. It panics on a non-positive interval.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks, invoking tick on every boundary until ctx is cancelled. A
// refresh that overruns one or more boundaries skips them rather than
// firing back to back.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if err := wait(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	if s.opts.RunOnStart {
		s.fire(ctx, tick, s.now())
	}

	next := s.nextTick(s.now())
	for {
		s.logger.Debug().Time("next_run", next).Msg("waiting for next refresh")
		if err := wait(ctx, next.Sub(s.now())); err != nil {
			return err
		}

		s.fire(ctx, tick, s.runStart(next))

		now := s.now()
		next = next.Add(s.opts.Interval)
		if missed := s.missed(next, now); missed > 0 {
			s.logger.Warn().Int("missed", missed).Msg("refresh overran its interval, skipping missed runs")
			next = s.nextTick(now)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc, at time.Time) {
	s.logger.Info().Time("run", at).Msg("starting scheduled refresh")
	if err := tick(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("run", at).Msg("scheduled refresh failed")
	}
}

// missed counts boundaries at or before now, starting from next.
func (s *Scheduler) missed(next, now time.Time) int {
	if next.After(now) {
		return 0
	}
	return int(now.Sub(next)/s.opts.Interval) + 1
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	next := now.Truncate(s.opts.Interval)
	if !next.After(now) {
		next = next.Add(s.opts.Interval)
	}
	return next
}

func (s *Scheduler) runStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
