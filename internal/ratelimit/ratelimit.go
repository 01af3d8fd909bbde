// Package ratelimit decides whether a user may receive another notification,
// using sliding windows over the persisted notification records.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/TheLoudSteve/epl-forecast/internal/config"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

const (
	hour = int64(time.Hour / time.Second)
	day  = int64(24 * time.Hour / time.Second)
	week = 7 * day
)

// DefaultStoreTimeout bounds every record store call.
const DefaultStoreTimeout = 3 * time.Second

// Limits are the per-user thresholds.
type Limits struct {
	MaxPerHour      int
	MaxPerDay       int
	MinSpacing      time.Duration
	DuplicateWindow time.Duration
	Cooldown        time.Duration
	RecordTTL       time.Duration
}

// DefaultLimits returns 5/hour, 20/day, 5 minute spacing, a 1 hour duplicate
// window, a 30 minute cooldown and 7 day record retention.
func DefaultLimits() Limits {
	return Limits{
		MaxPerHour:      5,
		MaxPerDay:       20,
		MinSpacing:      5 * time.Minute,
		DuplicateWindow: time.Hour,
		Cooldown:        30 * time.Minute,
		RecordTTL:       7 * 24 * time.Hour,
	}
}

// LimitsFromConfig maps the ratelimit config section.
func LimitsFromConfig(cfg config.RateLimitConfig) Limits {
	return Limits{
		MaxPerHour:      cfg.MaxPerHour,
		MaxPerDay:       cfg.MaxPerDay,
		MinSpacing:      cfg.MinSpacing,
		DuplicateWindow: cfg.DuplicateWindow,
		Cooldown:        cfg.Cooldown,
		RecordTTL:       cfg.RecordTTL,
	}
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Limiter evaluates and records sends. A nil store disables limiting.
type Limiter struct {
	store   storage.NotificationRecordStore
	limits  Limits
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// New constructs a Limiter.
func New(store storage.NotificationRecordStore, limits Limits, logger zerolog.Logger) *Limiter {
	return &Limiter{
		store:   store,
		limits:  limits,
		timeout: DefaultStoreTimeout,
		now:     time.Now,
		logger:  logger.With().Str("component", "ratelimit").Logger(),
	}
}

// SetStoreTimeout bounds each record store call. Non-positive values keep
// the current timeout.
func (l *Limiter) SetStoreTimeout(d time.Duration) {
	if d > 0 {
		l.timeout = d
	}
}

// SetClock replaces the time source.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Limits returns the active thresholds.
func (l *Limiter) Limits() Limits {
	return l.limits
}

// CanSend runs the hourly, daily, spacing and duplicate checks in that order.
// Storage failures fail open.
func (l *Limiter) CanSend(ctx context.Context, prefs notification.Preferences, content notification.Content) Decision {
	if l.store == nil {
		return allow("Rate limiting not configured")
	}

	now := l.now().Unix()
	lookback := max(day, seconds(l.limits.DuplicateWindow))
	records, err := l.recordsSince(ctx, prefs.UserID, now-lookback)
	if err != nil {
		return l.failOpen(prefs.UserID, err)
	}
	w := newWindow(records, now)

	if w.within(hour) >= l.limits.MaxPerHour {
		remaining := w.last + seconds(l.limits.Cooldown) - now
		if remaining > 0 {
			return deny(fmt.Sprintf("Hourly rate limit exceeded. Cooldown for %d more minutes", remaining/60))
		}
	}
	if w.within(day) >= l.limits.MaxPerDay {
		return deny("Daily notification limit exceeded")
	}
	if len(records) > 0 {
		if since := now - w.last; since < seconds(l.limits.MinSpacing) {
			wait := seconds(l.limits.MinSpacing) - since
			return deny(fmt.Sprintf("Too soon since last notification. Wait %d more minutes", wait/60))
		}
	}

	hash := ContentHash(content)
	dup := seconds(l.limits.DuplicateWindow)
	for _, r := range records {
		if r.ContentHash == hash && now-r.SentAt < dup {
			return deny("Duplicate notification content within window")
		}
	}
	return allow("Notification allowed")
}

// CanSendUser applies the content-free checks that Stats reports: hourly
// cap, daily cap and spacing. Unlike CanSend the hourly cap has no cooldown
// escape.
func (l *Limiter) CanSendUser(ctx context.Context, userID string) Decision {
	if l.store == nil {
		return allow("Rate limiting not configured")
	}

	now := l.now().Unix()
	records, err := l.recordsSince(ctx, userID, now-day)
	if err != nil {
		return l.failOpen(userID, err)
	}
	return l.userDecision(newWindow(records, now), now)
}

// CanSendTest only enforces the daily cap; test sends are user initiated.
func (l *Limiter) CanSendTest(ctx context.Context, userID string) Decision {
	if l.store == nil {
		return allow("Rate limiting not configured")
	}

	now := l.now().Unix()
	records, err := l.recordsSince(ctx, userID, now-day)
	if err != nil {
		return l.failOpen(userID, err)
	}
	if newWindow(records, now).within(day) >= l.limits.MaxPerDay {
		return deny("Daily rate limit exceeded")
	}
	return allow("User can receive notifications")
}

// RecordSent persists an audit record for a successful send. Duplicate
// records from retries are tolerated.
func (l *Limiter) RecordSent(ctx context.Context, prefs notification.Preferences, content notification.Content, messageID string) error {
	if l.store == nil {
		return nil
	}

	now := l.now().Unix()
	record := notification.Record{
		UserID:      prefs.UserID,
		SentAt:      now,
		TeamName:    prefs.TeamName,
		Type:        content.Type,
		MessageID:   messageID,
		ContentHash: ContentHash(content),
		ExpiresAt:   now + seconds(l.limits.RecordTTL),
	}
	insertCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.store.InsertNotificationRecord(insertCtx, record); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	l.logger.Debug().Str("record", record.RecordID()).Str("type", content.Type).Msg("notification recorded")
	return nil
}

// Stats summarises a user's recent sends.
type Stats struct {
	UserID        string
	LastHour      int
	LastDay       int
	LastWeek      int
	LastSentAt    int64
	CanSend       bool
	Reason        string
	NextAllowedAt int64
	Limits        Limits
}

// Stats reports window counts, eligibility and the next time a send would
// be allowed.
func (l *Limiter) Stats(ctx context.Context, userID string) (Stats, error) {
	if l.store == nil {
		return Stats{}, errors.New("rate limiting not configured")
	}

	now := l.now().Unix()
	records, err := l.recordsSince(ctx, userID, now-week)
	if err != nil {
		return Stats{}, fmt.Errorf("load notification records: %w", err)
	}
	w := newWindow(records, now)
	decision := l.userDecision(w, now)

	stats := Stats{
		UserID:        userID,
		LastHour:      w.within(hour),
		LastDay:       w.within(day),
		LastWeek:      w.within(week),
		LastSentAt:    w.last,
		CanSend:       decision.Allowed,
		NextAllowedAt: l.nextAllowed(w, now),
		Limits:        l.limits,
	}
	if !decision.Allowed {
		stats.Reason = decision.Reason
	}
	return stats, nil
}

func (l *Limiter) recordsSince(ctx context.Context, userID string, since int64) ([]notification.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.store.ListNotificationRecordsSince(ctx, userID, since)
}

func (l *Limiter) userDecision(w window, now int64) Decision {
	if w.within(hour) >= l.limits.MaxPerHour {
		return deny("Hourly rate limit exceeded")
	}
	if w.within(day) >= l.limits.MaxPerDay {
		return deny("Daily rate limit exceeded")
	}
	if len(w.records) > 0 && now-w.last < seconds(l.limits.MinSpacing) {
		return deny("Too soon since last notification")
	}
	return allow("User can receive notifications")
}

func (l *Limiter) nextAllowed(w window, now int64) int64 {
	if len(w.records) == 0 {
		return now
	}
	next := w.last + seconds(l.limits.MinSpacing)
	if w.within(hour) >= l.limits.MaxPerHour {
		next = max(next, w.oldestWithin(hour)+hour+seconds(l.limits.Cooldown))
	}
	return max(next, now)
}

func (l *Limiter) failOpen(userID string, err error) Decision {
	l.logger.Warn().Err(err).Str("user_id", userID).Msg("rate limit check failed, allowing")
	if errors.Is(err, storage.ErrNotConfigured) {
		return allow("Rate limiting not configured")
	}
	return allow("Rate limiting check failed: " + err.Error())
}

// ContentHash fingerprints title, body and team for duplicate suppression.
func ContentHash(content notification.Content) string {
	sum := xxhash.Sum64String(content.Title + "|" + content.Body + "|" + content.TeamName)
	return fmt.Sprintf("%016x", sum)
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

type window struct {
	records []notification.Record
	now     int64
	last    int64
}

func newWindow(records []notification.Record, now int64) window {
	w := window{records: records, now: now}
	for _, r := range records {
		w.last = max(w.last, r.SentAt)
	}
	return w
}

// within counts records no older than span seconds.
func (w window) within(span int64) int {
	n := 0
	for _, r := range w.records {
		if w.now-r.SentAt <= span {
			n++
		}
	}
	return n
}

func (w window) oldestWithin(span int64) int64 {
	var oldest int64
	for _, r := range w.records {
		if w.now-r.SentAt > span {
			continue
		}
		if oldest == 0 || r.SentAt < oldest {
			oldest = r.SentAt
		}
	}
	return oldest
}
