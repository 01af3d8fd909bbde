package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheLoudSteve/epl-forecast/internal/config"
	"github.com/TheLoudSteve/epl-forecast/internal/fetcher"
	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/scheduler"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

// DefaultContext labels updates that carry no match context.
const DefaultContext = "Scheduled update"

// UpdateReport is the status of one refresh cycle. It is produced even when
// persistence or notification fail.
type UpdateReport struct {
	Season            string        `json:"season"`
	Timestamp         int64         `json:"timestamp"`
	Context           string        `json:"context"`
	Teams             int           `json:"teams"`
	Skipped           bool          `json:"skipped,omitempty"`
	Saved             bool          `json:"saved"`
	SaveError         string        `json:"save_error,omitempty"`
	Notifications     *Summary      `json:"notifications,omitempty"`
	NotificationError string        `json:"notification_error,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// Updater runs the fetch, compute, save and notify cycle.
type Updater struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.StandingsFetcher
	snapshots storage.SnapshotStore
	service   *Service
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger

	season   string
	games    int
	ttl      time.Duration
	notifyOn bool
	lockKey  int64
	now      func() time.Time
}

// NewUpdater constructs the refresh cycle.
func NewUpdater(cfg *config.Config, sched *scheduler.Scheduler, source fetcher.StandingsFetcher, snapshots storage.SnapshotStore, svc *Service, logger zerolog.Logger) *Updater {
	var locker storage.AdvisoryLocker
	if l, ok := snapshots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Updater{
		scheduler: sched,
		fetcher:   source,
		snapshots: snapshots,
		service:   svc,
		locker:    locker,
		logger:    logger.With().Str("component", "updater").Logger(),
		season:    cfg.Forecast.Season,
		games:     cfg.Forecast.GamesPerSeason,
		ttl:       cfg.Forecast.SnapshotTTL,
		notifyOn:  cfg.Notifications.Enabled,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		now:       time.Now,
	}
}

// SetClock overrides the time source.
func (u *Updater) SetClock(now func() time.Time) {
	u.now = now
}

// Run begins the aligned refresh loop.
func (u *Updater) Run(ctx context.Context) error {
	if u.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return u.scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := u.Update(ctx, DefaultContext)
		return err
	})
}

// Update runs one refresh cycle. Only a failed fetch or lock acquisition is
// returned as an error.
func (u *Updater) Update(ctx context.Context, changeContext string) (UpdateReport, error) {
	start := u.now()
	if changeContext == "" {
		changeContext = DefaultContext
	}
	report := UpdateReport{Season: u.season, Context: changeContext}

	unlock, proceed, err := u.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		u.logger.Debug().Msg("skip update because advisory lock held elsewhere")
		report.Skipped = true
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	if u.fetcher == nil {
		return report, errors.New("standings source not configured")
	}
	standings, err := u.fetcher.FetchStandings(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch standings: %w", err)
	}

	positions := forecast.Compute(standings, u.games)
	current := forecast.NewSnapshot(positions, u.season, changeContext, u.now())
	report.Timestamp = current.Timestamp
	report.Teams = len(positions)

	// The baseline must be read before the new snapshot replaces latest.
	previous, baselineErr := u.baseline(ctx, current)

	if u.snapshots != nil {
		if err := u.snapshots.SaveSnapshot(ctx, current, u.ttl); err != nil {
			report.SaveError = err.Error()
			u.logger.Error().Err(err).Int64("timestamp", current.Timestamp).Msg("failed to save snapshot")
		} else {
			report.Saved = true
		}
	}

	if u.notifyOn && u.service != nil {
		summary, err := u.notify(ctx, previous, baselineErr, current)
		if err != nil {
			report.NotificationError = err.Error()
			u.logger.Error().Err(err).Msg("notification processing failed")
		} else {
			report.Notifications = &summary
		}
	}

	report.Duration = u.now().Sub(start)
	u.logger.Info().
		Str("season", report.Season).
		Str("context", changeContext).
		Int("teams", report.Teams).
		Bool("saved", report.Saved).
		Dur("duration", report.Duration).
		Msg("forecast updated")
	return report, nil
}

func (u *Updater) baseline(ctx context.Context, current forecast.Snapshot) (forecast.Snapshot, error) {
	if u.service == nil {
		return forecast.Snapshot{}, storage.ErrNotConfigured
	}
	return u.service.Baseline(ctx, current)
}

func (u *Updater) notify(ctx context.Context, previous forecast.Snapshot, baselineErr error, current forecast.Snapshot) (Summary, error) {
	switch {
	case errors.Is(baselineErr, storage.ErrNotConfigured):
		return Summary{Message: "Snapshot storage not configured"}, nil
	case errors.Is(baselineErr, storage.ErrNotFound):
		return Summary{Message: "No previous forecast to compare"}, nil
	case baselineErr != nil:
		return Summary{}, fmt.Errorf("load baseline snapshot: %w", baselineErr)
	}
	return u.service.ProcessChange(ctx, previous, current)
}

func (u *Updater) acquireLock(ctx context.Context) (func(), bool, error) {
	if u.lockKey == 0 || u.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := u.locker.TryAdvisoryLock(ctx, u.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
