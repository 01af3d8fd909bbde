package fetcher

import (
	"context"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy is a capped exponential backoff.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Sleep     SleepFunc
}

// Delay returns the wait before retry n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds or attempts run out, returning the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if serr := sleep(ctx, p.Delay(i)); serr != nil {
			return serr
		}
	}
	return err
}

// Retrying wraps a fetcher with a retry policy.
type Retrying struct {
	next   StandingsFetcher
	policy RetryPolicy
}

// WithRetry decorates next.
func WithRetry(next StandingsFetcher, policy RetryPolicy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

func (r *Retrying) FetchStandings(ctx context.Context) ([]forecast.Standing, error) {
	var out []forecast.Standing
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		standings, err := r.next.FetchStandings(ctx)
		if err != nil {
			return err
		}
		out = standings
		return nil
	})
	return out, err
}

var _ StandingsFetcher = (*Retrying)(nil)
