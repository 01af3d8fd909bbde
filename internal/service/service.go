package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TheLoudSteve/epl-forecast/internal/config"
	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
	"github.com/TheLoudSteve/epl-forecast/internal/ratelimit"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

var (
	// ErrPreferencesNotFound is returned when a user has no saved preferences.
	ErrPreferencesNotFound = errors.New("service: user preferences not found")
	// ErrDeliveryDisabled is returned when a send is requested without a
	// configured push platform.
	ErrDeliveryDisabled = errors.New("service: delivery not configured")
)

// Sender delivers a notification and returns the platform message id.
type Sender interface {
	Send(ctx context.Context, prefs notification.Preferences, content notification.Content) (string, error)
}

// Gate decides whether a user may be notified and records sends.
type Gate interface {
	CanSend(ctx context.Context, prefs notification.Preferences, content notification.Content) ratelimit.Decision
	CanSendTest(ctx context.Context, userID string) ratelimit.Decision
	RecordSent(ctx context.Context, prefs notification.Preferences, content notification.Content, messageID string) error
}

// Service turns forecast updates into per-user notifications.
type Service struct {
	snapshots storage.SnapshotStore
	prefs     storage.PreferenceStore
	gate      Gate
	sender    Sender
	digest    DigestQueue
	generator *notification.Generator
	logger    zerolog.Logger

	zones        forecast.Zones
	season       string
	workers      int
	pageSize     int
	storeTimeout time.Duration
}

// New constructs the notification service. Nil stores, gate or sender turn
// the matching step into a no-op.
func New(cfg *config.Config, snapshots storage.SnapshotStore, prefs storage.PreferenceStore, gate Gate, sender Sender, digest DigestQueue, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "service").Logger()
	if digest == nil {
		digest = NewLogDigestQueue(logger)
	}
	workers := cfg.Notifications.Workers
	if workers <= 0 {
		workers = 1
	}
	pageSize := cfg.Notifications.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	storeTimeout := cfg.Database.QueryTimeout
	if storeTimeout <= 0 {
		storeTimeout = ratelimit.DefaultStoreTimeout
	}

	return &Service{
		snapshots:    snapshots,
		prefs:        prefs,
		gate:         gate,
		sender:       sender,
		digest:       digest,
		generator:    notification.NewGenerator(cfg.Forecast.Zones),
		logger:       logger,
		zones:        cfg.Forecast.Zones,
		season:       cfg.Forecast.Season,
		workers:      workers,
		pageSize:     pageSize,
		storeTimeout: storeTimeout,
	}
}

// ChangeSummary describes one detected movement.
type ChangeSummary struct {
	Team             string `json:"team"`
	PreviousPosition int    `json:"previous_position"`
	NewPosition      int    `json:"new_position"`
	Movement         string `json:"movement"`
}

// Summary is the outcome of one notification cycle.
type Summary struct {
	ChangesDetected int             `json:"changes_detected"`
	Evaluated       int             `json:"notifications_evaluated"`
	Sent            int             `json:"notifications_sent"`
	Queued          int             `json:"notifications_queued"`
	RateLimited     int             `json:"rate_limited"`
	Failed          int             `json:"failed"`
	Changes         []ChangeSummary `json:"changes"`
	Message         string          `json:"message"`
}

// Baseline returns the snapshot current should be compared against: the
// latest stored one, unless that is current itself or newer, in which case
// the newest one strictly before current.
func (s *Service) Baseline(ctx context.Context, current forecast.Snapshot) (forecast.Snapshot, error) {
	if s.snapshots == nil {
		return forecast.Snapshot{}, storage.ErrNotConfigured
	}
	season := current.Season
	if season == "" {
		season = s.season
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	latest, err := s.snapshots.LatestSnapshot(ctx, season)
	if err != nil {
		return forecast.Snapshot{}, err
	}
	if latest.Timestamp < current.Timestamp {
		return latest, nil
	}
	return s.snapshots.SnapshotBefore(ctx, season, current.Timestamp)
}

// Process compares current against the stored baseline and notifies
// subscribers. Only a failing baseline lookup or preference load is an error.
func (s *Service) Process(ctx context.Context, current forecast.Snapshot) (Summary, error) {
	previous, err := s.Baseline(ctx, current)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		return Summary{Message: "Snapshot storage not configured"}, nil
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Info().Str("season", current.Season).Msg("no baseline snapshot, nothing to compare")
		return Summary{Message: "No previous forecast to compare"}, nil
	case err != nil:
		return Summary{}, fmt.Errorf("load baseline snapshot: %w", err)
	}
	return s.ProcessChange(ctx, previous, current)
}

// ProcessChange notifies subscribers of the movements between previous and
// current.
func (s *Service) ProcessChange(ctx context.Context, previous, current forecast.Snapshot) (Summary, error) {
	return s.notify(ctx, forecast.Diff(previous, current), previous, current)
}

// ProcessTeamChange is ProcessChange restricted to one team's movement, so
// teams shifted as a side effect notify nobody.
func (s *Service) ProcessTeamChange(ctx context.Context, previous, current forecast.Snapshot, team string) (Summary, error) {
	changes := make([]forecast.Change, 0, 1)
	for _, c := range forecast.Diff(previous, current) {
		if strings.EqualFold(c.TeamName, team) {
			changes = append(changes, c)
		}
	}
	return s.notify(ctx, changes, previous, current)
}

func (s *Service) notify(ctx context.Context, changes []forecast.Change, previous, current forecast.Snapshot) (Summary, error) {
	summary := Summary{ChangesDetected: len(changes), Changes: summarize(changes)}
	if len(changes) == 0 {
		summary.Message = "No position changes detected"
		return summary, nil
	}

	for _, c := range summary.Changes {
		s.logger.Info().
			Str("team", c.Team).
			Int("previous_position", c.PreviousPosition).
			Int("new_position", c.NewPosition).
			Str("movement", c.Movement).
			Msg("position change detected")
	}

	if s.prefs == nil {
		summary.Message = "Notification preferences not configured"
		return summary, nil
	}

	subscribers, err := s.enabledPreferences(ctx)
	if errors.Is(err, storage.ErrNotConfigured) {
		summary.Message = "Notification preferences not configured"
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("load notification preferences: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, prefs := range subscribers {
		g.Go(func() error {
			out := s.processUser(gctx, prefs, changes, previous, current)
			mu.Lock()
			summary.Evaluated += out.Evaluated
			summary.Sent += out.Sent
			summary.Queued += out.Queued
			summary.RateLimited += out.RateLimited
			summary.Failed += out.Failed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Message = fmt.Sprintf("Processed %d changes for %d subscribers: %d sent, %d queued",
		summary.ChangesDetected, len(subscribers), summary.Sent, summary.Queued)
	s.logger.Info().
		Int("changes", summary.ChangesDetected).
		Int("subscribers", len(subscribers)).
		Int("evaluated", summary.Evaluated).
		Int("sent", summary.Sent).
		Int("queued", summary.Queued).
		Int("rate_limited", summary.RateLimited).
		Int("failed", summary.Failed).
		Msg("notification cycle finished")
	return summary, nil
}

// processUser handles every change tracked by one subscriber. Failures are
// logged and counted, never returned.
func (s *Service) processUser(ctx context.Context, prefs notification.Preferences, changes []forecast.Change, previous, current forecast.Snapshot) Summary {
	var out Summary
	for _, change := range changes {
		if !prefs.Tracks(change) {
			continue
		}
		out.Evaluated++

		log := s.logger.With().
			Str("user_id", prefs.UserID).
			Str("team", change.TeamName).
			Int("previous_position", change.PreviousPosition).
			Int("new_position", change.NewPosition).
			Logger()

		if prefs.Sensitivity == notification.SensitivitySignificantOnly && !s.zones.IsSignificantChange(change, previous, current) {
			log.Debug().Msg("change below sensitivity threshold")
			continue
		}

		content := s.generator.PositionChange(change, current.Context)

		if s.gate != nil {
			if decision := s.gate.CanSend(ctx, prefs, content); !decision.Allowed {
				out.RateLimited++
				log.Info().Str("reason", decision.Reason).Msg("notification rate limited")
				continue
			}
		}

		switch prefs.Timing {
		case notification.TimingEndOfDay:
			if err := s.digest.Enqueue(ctx, prefs, content); err != nil {
				out.Failed++
				log.Error().Err(err).Msg("failed to queue end-of-day notification")
				continue
			}
			out.Queued++
		default:
			if err := s.deliver(ctx, prefs, content); err != nil {
				out.Failed++
				log.Error().Err(err).Msg("failed to send notification")
				continue
			}
			out.Sent++
		}
	}
	return out
}

func (s *Service) deliver(ctx context.Context, prefs notification.Preferences, content notification.Content) error {
	if s.sender == nil {
		return ErrDeliveryDisabled
	}
	messageID, err := s.sender.Send(ctx, prefs, content)
	if err != nil {
		return err
	}
	if s.gate != nil {
		if err := s.gate.RecordSent(ctx, prefs, content, messageID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", prefs.UserID).Str("message_id", messageID).Msg("sent but failed to record notification")
		}
	}
	return nil
}

// enabledPreferences pages through every enabled subscriber.
func (s *Service) enabledPreferences(ctx context.Context) ([]notification.Preferences, error) {
	var (
		all   []notification.Preferences
		after string
	)
	for {
		page, err := s.listEnabled(ctx, after)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
		after = page[len(page)-1].UserID
	}
}

func (s *Service) listEnabled(ctx context.Context, after string) ([]notification.Preferences, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.prefs.ListEnabledPreferences(ctx, after, s.pageSize)
}

// TestResult describes a test send.
type TestResult struct {
	Sent      bool                 `json:"sent"`
	MessageID string               `json:"message_id,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Content   notification.Content `json:"content"`
}

// SendTest sends the test notification to one user. Only the daily cap
// applies.
func (s *Service) SendTest(ctx context.Context, userID string) (TestResult, error) {
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return TestResult{}, err
	}

	content := s.generator.Test(prefs)
	result := TestResult{Content: content}
	if s.gate != nil {
		if decision := s.gate.CanSendTest(ctx, userID); !decision.Allowed {
			result.Reason = decision.Reason
			s.logger.Info().Str("user_id", userID).Str("reason", decision.Reason).Msg("test notification rate limited")
			return result, nil
		}
	}

	if err := s.deliverTest(ctx, prefs, content, &result); err != nil {
		return result, fmt.Errorf("send test notification to %s: %w", userID, err)
	}
	return result, nil
}

func (s *Service) deliverTest(ctx context.Context, prefs notification.Preferences, content notification.Content, result *TestResult) error {
	if s.sender == nil {
		return ErrDeliveryDisabled
	}
	messageID, err := s.sender.Send(ctx, prefs, content)
	if err != nil {
		return err
	}
	result.Sent = true
	result.MessageID = messageID
	if s.gate != nil {
		if err := s.gate.RecordSent(ctx, prefs, content, messageID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", prefs.UserID).Msg("failed to record test notification")
		}
	}
	return nil
}

// Preview renders the test notification and sample transitions for a user.
func (s *Service) Preview(ctx context.Context, userID string, now time.Time) ([]notification.Preview, error) {
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.generator.Preview(prefs, notification.DefaultScenarios(), now), nil
}

func (s *Service) preferences(ctx context.Context, userID string) (notification.Preferences, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return notification.Preferences{}, errors.New("user id is required")
	}
	if s.prefs == nil {
		return notification.Preferences{}, storage.ErrNotConfigured
	}
	getCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	prefs, err := s.prefs.GetPreferences(getCtx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return notification.Preferences{}, fmt.Errorf("%w: %s", ErrPreferencesNotFound, userID)
	}
	if err != nil {
		return notification.Preferences{}, fmt.Errorf("load preferences for %s: %w", userID, err)
	}
	return prefs, nil
}

func summarize(changes []forecast.Change) []ChangeSummary {
	out := make([]ChangeSummary, 0, len(changes))
	for _, c := range changes {
		out = append(out, ChangeSummary{
			Team:             c.TeamName,
			PreviousPosition: c.PreviousPosition,
			NewPosition:      c.NewPosition,
			Movement:         c.Movement(),
		})
	}
	return out
}
