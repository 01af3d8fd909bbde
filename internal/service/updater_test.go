package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
)

type stubFetcher struct {
	standings []forecast.Standing
	err       error
}

func (s stubFetcher) FetchStandings(context.Context) ([]forecast.Standing, error) {
	return s.standings, s.err
}

type lockingSnapshots struct {
	*memorySnapshots
	held bool
}

func (l *lockingSnapshots) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func() {}, true, nil
}

// standings is a five-team table seven games in; Arsenal's points vary.
func standings(arsenalPoints int) []forecast.Standing {
	return []forecast.Standing{
		{TeamName: "Liverpool", Played: 7, Points: 18, GoalsFor: 15, GoalsAgainst: 3},
		{TeamName: "Manchester City", Played: 7, Points: 17, GoalsFor: 17, GoalsAgainst: 7},
		{TeamName: "Chelsea", Played: 7, Points: 14, GoalsFor: 16, GoalsAgainst: 8},
		{TeamName: "Aston Villa", Played: 7, Points: 13, GoalsFor: 12, GoalsAgainst: 9},
		{TeamName: "Arsenal", Played: 7, Points: arsenalPoints, GoalsFor: 13, GoalsAgainst: 6},
	}
}

func newUpdaterHarness(t *testing.T, src stubFetcher) (*Updater, *harness) {
	t.Helper()
	h := newHarness(subscriber("u1", "Arsenal"))
	u := NewUpdater(testConfig(), nil, src, h.snaps, h.svc, zerolog.Nop())
	u.SetClock(func() time.Time { return now })
	return u, h
}

func TestUpdateSavesAndNotifies(t *testing.T) {
	u, h := newUpdaterHarness(t, stubFetcher{standings: standings(16)})
	prev := forecast.NewSnapshot(forecast.Compute(standings(11), 38), season, "", now.Add(-2*time.Hour))
	h.snaps.snaps = append(h.snaps.snaps, prev)

	report, err := u.Update(context.Background(), "Arsenal vs Chelsea")
	require.NoError(t, err)
	require.True(t, report.Saved)
	require.Equal(t, 5, report.Teams)
	require.Equal(t, now.Unix(), report.Timestamp)
	require.NotNil(t, report.Notifications)
	require.Equal(t, 1, report.Notifications.Sent)

	latest, err := h.snaps.LatestSnapshot(context.Background(), season)
	require.NoError(t, err)
	require.Equal(t, "Arsenal vs Chelsea", latest.Context)
	arsenal, ok := latest.Team("Arsenal")
	require.True(t, ok)
	require.Equal(t, 3, arsenal.Position)
}

func TestUpdateDefaultsContext(t *testing.T) {
	u, _ := newUpdaterHarness(t, stubFetcher{standings: standings(11)})

	report, err := u.Update(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, DefaultContext, report.Context)
	require.Equal(t, "No previous forecast to compare", report.Notifications.Message)
}

func TestUpdateFetchFailure(t *testing.T) {
	u, h := newUpdaterHarness(t, stubFetcher{err: errors.New("timeout")})

	_, err := u.Update(context.Background(), "")
	require.Error(t, err)
	require.Empty(t, h.snaps.snaps)
}

func TestUpdateSurvivesStorageFailure(t *testing.T) {
	u, h := newUpdaterHarness(t, stubFetcher{standings: standings(11)})
	h.snaps.err = errors.New("database unreachable")

	report, err := u.Update(context.Background(), "")
	require.NoError(t, err)
	require.False(t, report.Saved)
	require.Contains(t, report.SaveError, "database unreachable")
	require.Contains(t, report.NotificationError, "database unreachable")
}

func TestUpdateSkipsWhenLockHeld(t *testing.T) {
	h := newHarness()
	snaps := &lockingSnapshots{memorySnapshots: h.snaps, held: true}
	cfg := testConfig()
	cfg.Scheduler.AdvisoryLockKey = 42
	u := NewUpdater(cfg, nil, stubFetcher{standings: standings(11)}, snaps, h.svc, zerolog.Nop())

	report, err := u.Update(context.Background(), "")
	require.NoError(t, err)
	require.True(t, report.Skipped)
	require.Empty(t, h.snaps.snaps)
}
