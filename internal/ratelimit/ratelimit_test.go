package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TheLoudSteve/epl-forecast/internal/notification"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

type memoryRecords struct {
	mu      sync.Mutex
	records []notification.Record
	err     error
}

func (m *memoryRecords) InsertNotificationRecord(_ context.Context, r notification.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memoryRecords) ListNotificationRecordsSince(_ context.Context, userID string, since int64) ([]notification.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]notification.Record, 0)
	for _, r := range m.records {
		if r.UserID == userID && r.SentAt >= since {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRecords) DeleteExpiredNotificationRecords(_ context.Context, now int64) (int64, error) {
	return 0, nil
}

var _ storage.NotificationRecordStore = (*memoryRecords)(nil)

var base = time.Date(2024, 10, 5, 15, 0, 0, 0, time.UTC)

func newLimiter(store storage.NotificationRecordStore, at *time.Time) *Limiter {
	l := New(store, DefaultLimits(), zerolog.Nop())
	l.SetClock(func() time.Time { return *at })
	return l
}

func seed(store *memoryRecords, userID string, ago ...time.Duration) {
	for i, d := range ago {
		store.records = append(store.records, notification.Record{
			UserID:      userID,
			SentAt:      base.Add(-d).Unix(),
			ContentHash: "seed" + string(rune('a'+i)),
		})
	}
}

func content(body string) notification.Content {
	return notification.Content{Title: "Arsenal", Body: body, TeamName: "Arsenal", Type: notification.TypePositionChange}
}

func TestHourlyCapUntilCooldownOrAgeOut(t *testing.T) {
	store := &memoryRecords{}
	seed(store, "u1", 50*time.Minute, 40*time.Minute, 30*time.Minute, 20*time.Minute, 10*time.Minute)
	now := base
	l := newLimiter(store, &now)
	prefs := notification.NewPreferences("u1", "Arsenal")

	d := l.CanSend(context.Background(), prefs, content("a"))
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "Hourly rate limit exceeded")

	now = base.Add(5 * time.Minute)
	require.False(t, l.CanSend(context.Background(), prefs, content("a")).Allowed)

	// the 50 minute old send leaves the hour window
	now = base.Add(10*time.Minute + time.Second)
	require.True(t, l.CanSend(context.Background(), prefs, content("a")).Allowed)
}

func TestHourlyCapCooldownElapses(t *testing.T) {
	store := &memoryRecords{}
	seed(store, "u1", 59*time.Minute, 58*time.Minute, 57*time.Minute, 56*time.Minute, 31*time.Minute)
	now := base
	l := newLimiter(store, &now)
	prefs := notification.NewPreferences("u1", "Arsenal")

	// five in the hour, but the last one is older than the cooldown
	d := l.CanSend(context.Background(), prefs, content("a"))
	require.True(t, d.Allowed, d.Reason)

	require.Equal(t, "Hourly rate limit exceeded", l.CanSendUser(context.Background(), "u1").Reason)
}

func TestDailyCap(t *testing.T) {
	store := &memoryRecords{}
	ago := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		ago = append(ago, time.Duration(2+i)*time.Hour)
	}
	seed(store, "u1", ago...)
	now := base
	l := newLimiter(store, &now)
	prefs := notification.NewPreferences("u1", "Arsenal")

	d := l.CanSend(context.Background(), prefs, content("a"))
	require.False(t, d.Allowed)
	require.Equal(t, "Daily notification limit exceeded", d.Reason)

	require.Equal(t, "Daily rate limit exceeded", l.CanSendTest(context.Background(), "u1").Reason)
}

func TestMinimumSpacing(t *testing.T) {
	store := &memoryRecords{}
	seed(store, "u1", 2*time.Minute)
	now := base
	l := newLimiter(store, &now)
	prefs := notification.NewPreferences("u1", "Arsenal")

	d := l.CanSend(context.Background(), prefs, content("a"))
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "Too soon since last notification")

	now = base.Add(3 * time.Minute)
	require.True(t, l.CanSend(context.Background(), prefs, content("a")).Allowed)
}

func TestDuplicateContentSuppressedWithinWindow(t *testing.T) {
	store := &memoryRecords{}
	now := base
	l := newLimiter(store, &now)
	prefs := notification.NewPreferences("u1", "Arsenal")
	msg := content("Arsenal moved up from 5th to 4th")

	require.True(t, l.CanSend(context.Background(), prefs, msg).Allowed)
	require.NoError(t, l.RecordSent(context.Background(), prefs, msg, "m-1"))

	now = base.Add(10 * time.Minute)
	d := l.CanSend(context.Background(), prefs, msg)
	require.False(t, d.Allowed)
	require.Equal(t, "Duplicate notification content within window", d.Reason)

	require.True(t, l.CanSend(context.Background(), prefs, content("something else")).Allowed)

	now = base.Add(time.Hour)
	require.True(t, l.CanSend(context.Background(), prefs, msg).Allowed)
}

func TestRecordSent(t *testing.T) {
	store := &memoryRecords{}
	now := base
	l := newLimiter(store, &now)
	prefs := notification.NewPreferences("u1", "Arsenal")

	require.NoError(t, l.RecordSent(context.Background(), prefs, content("a"), "m-1"))
	require.Len(t, store.records, 1)

	rec := store.records[0]
	require.Equal(t, "u1#1728140400", rec.RecordID())
	require.Equal(t, "Arsenal", rec.TeamName)
	require.Equal(t, "m-1", rec.MessageID)
	require.Equal(t, base.Unix()+7*24*3600, rec.ExpiresAt)
	require.Len(t, rec.ContentHash, 16)

	store.err = errors.New("db down")
	require.Error(t, l.RecordSent(context.Background(), prefs, content("b"), "m-2"))
}

func TestFailOpen(t *testing.T) {
	now := base
	prefs := notification.NewPreferences("u1", "Arsenal")

	l := newLimiter(&memoryRecords{err: errors.New("connection refused")}, &now)
	d := l.CanSend(context.Background(), prefs, content("a"))
	require.True(t, d.Allowed)
	require.Equal(t, "Rate limiting check failed: connection refused", d.Reason)

	var unconfigured *storage.Store
	l = newLimiter(unconfigured, &now)
	d = l.CanSend(context.Background(), prefs, content("a"))
	require.True(t, d.Allowed)
	require.Equal(t, "Rate limiting not configured", d.Reason)

	l = newLimiter(nil, &now)
	require.Equal(t, "Rate limiting not configured", l.CanSendUser(context.Background(), "u1").Reason)
	require.NoError(t, l.RecordSent(context.Background(), prefs, content("a"), "m"))
}

// stalledRecords never answers until the caller gives up.
type stalledRecords struct{}

func (stalledRecords) InsertNotificationRecord(ctx context.Context, _ notification.Record) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledRecords) ListNotificationRecordsSince(ctx context.Context, _ string, _ int64) ([]notification.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledRecords) DeleteExpiredNotificationRecords(ctx context.Context, _ int64) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestStalledStoreFailsOpenAfterTimeout(t *testing.T) {
	now := base
	prefs := notification.NewPreferences("u1", "Arsenal")
	l := newLimiter(stalledRecords{}, &now)
	l.SetStoreTimeout(20 * time.Millisecond)

	done := make(chan Decision, 1)
	go func() { done <- l.CanSend(context.Background(), prefs, content("a")) }()

	select {
	case d := <-done:
		require.True(t, d.Allowed)
		require.Contains(t, d.Reason, context.DeadlineExceeded.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("CanSend did not return on a stalled record store")
	}

	require.True(t, l.CanSendTest(context.Background(), "u1").Allowed)
	require.ErrorIs(t, l.RecordSent(context.Background(), prefs, content("a"), "m"), context.DeadlineExceeded)
	_, err := l.Stats(context.Background(), "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStats(t *testing.T) {
	store := &memoryRecords{}
	seed(store, "u1", 50*time.Minute, 40*time.Minute, 30*time.Minute, 20*time.Minute, 10*time.Minute, 5*time.Hour, 3*24*time.Hour)
	now := base
	l := newLimiter(store, &now)

	stats, err := l.Stats(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 5, stats.LastHour)
	require.Equal(t, 6, stats.LastDay)
	require.Equal(t, 7, stats.LastWeek)
	require.Equal(t, base.Add(-10*time.Minute).Unix(), stats.LastSentAt)
	require.False(t, stats.CanSend)
	require.Equal(t, "Hourly rate limit exceeded", stats.Reason)
	// oldest in the hour + 1h + 30m cooldown
	require.Equal(t, base.Add(-50*time.Minute+time.Hour+30*time.Minute).Unix(), stats.NextAllowedAt)

	empty, err := l.Stats(context.Background(), "nobody")
	require.NoError(t, err)
	require.True(t, empty.CanSend)
	require.Equal(t, base.Unix(), empty.NextAllowedAt)
}

func TestContentHashStable(t *testing.T) {
	a := content("x")
	require.Equal(t, ContentHash(a), ContentHash(a))
	require.NotEqual(t, ContentHash(a), ContentHash(content("y")))

	b := a
	b.TeamName = "Chelsea"
	require.NotEqual(t, ContentHash(a), ContentHash(b))
}
