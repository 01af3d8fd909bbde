package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeRanksByProjectedPoints(t *testing.T) {
	standings := []Standing{
		{TeamName: "Chelsea", Played: 10, Points: 15, GoalsFor: 12, GoalsAgainst: 10},
		{TeamName: "Arsenal", Played: 10, Points: 23, GoalsFor: 20, GoalsAgainst: 10},
		{TeamName: "Fulham", Played: 9, Points: 18, GoalsFor: 11, GoalsAgainst: 9},
	}

	table := Compute(standings, GamesPerSeason)
	require.Len(t, table, 3)

	require.Equal(t, "Arsenal", table[0].TeamName)
	require.Equal(t, 1, table[0].Position)
	require.InDelta(t, 87.4, table[0].Points, 1e-9)
	require.InDelta(t, 2.3, table[0].PointsPerGame, 1e-9)

	require.Equal(t, "Fulham", table[1].TeamName)
	require.InDelta(t, 76.0, table[1].Points, 1e-9)

	require.Equal(t, "Chelsea", table[2].TeamName)
	require.Equal(t, 3, table[2].Position)
	require.Equal(t, 2, table[2].GoalDifference)
}

func TestComputeTieBreakers(t *testing.T) {
	standings := []Standing{
		{TeamName: "Brentford", Played: 10, Points: 15, GoalsFor: 14, GoalsAgainst: 10},
		{TeamName: "Everton", Played: 10, Points: 15, GoalsFor: 12, GoalsAgainst: 8},
		{TeamName: "Wolves", Played: 10, Points: 15, GoalsFor: 16, GoalsAgainst: 12},
		{TeamName: "Burnley", Played: 10, Points: 15, GoalsFor: 16, GoalsAgainst: 12},
	}

	table := Compute(standings, GamesPerSeason)

	names := make([]string, len(table))
	for i, row := range table {
		names[i] = row.TeamName
		require.Equal(t, i+1, row.Position)
	}
	// Same points and goal difference: goals scored, then name.
	require.Equal(t, []string{"Burnley", "Wolves", "Brentford", "Everton"}, names)
}

func TestComputeZeroPlayed(t *testing.T) {
	table := Compute([]Standing{
		{TeamName: "Luton Town", Played: 0, Points: 0},
		{TeamName: "Arsenal", Played: 1, Points: 3, GoalsFor: 2},
	}, 0)

	require.Equal(t, "Arsenal", table[0].TeamName)
	require.InDelta(t, 114.0, table[0].Points, 1e-9)
	require.Equal(t, "Luton Town", table[1].TeamName)
	require.Zero(t, table[1].Points)
}

func TestDiffReportsOnlyMovedTeams(t *testing.T) {
	previous := Snapshot{Timestamp: 100, Teams: []Position{
		{TeamName: "Arsenal", Position: 5, Points: 50},
		{TeamName: "Chelsea", Position: 4, Points: 51},
		{TeamName: "Everton", Position: 10, Points: 40},
	}}
	current := Snapshot{Timestamp: 200, Context: "Arsenal vs Chelsea", Teams: []Position{
		{TeamName: "Chelsea", Position: 5, Points: 50.5},
		{TeamName: "Arsenal", Position: 4, Points: 53},
		{TeamName: "Everton", Position: 10, Points: 40},
		{TeamName: "Ipswich", Position: 11, Points: 39},
	}}

	changes := Diff(previous, current)
	require.Len(t, changes, 2)

	byTeam := map[string]Change{}
	for _, c := range changes {
		byTeam[c.TeamName] = c
	}

	arsenal := byTeam["Arsenal"]
	require.Equal(t, 5, arsenal.PreviousPosition)
	require.Equal(t, 4, arsenal.NewPosition)
	require.True(t, arsenal.IsImprovement())
	require.Equal(t, -1, arsenal.PositionDifference())
	require.InDelta(t, 3.0, arsenal.PointsDifference(), 1e-9)
	require.Equal(t, "Arsenal vs Chelsea", arsenal.Context)
	require.Equal(t, int64(200), arsenal.Timestamp)

	require.Equal(t, "down", byTeam["Chelsea"].Movement())
}

func TestDiffDefaultsContext(t *testing.T) {
	previous := Snapshot{Teams: []Position{{TeamName: "Arsenal", Position: 2}}}
	current := Snapshot{Teams: []Position{{TeamName: "Arsenal", Position: 1}}}

	changes := Diff(previous, current)
	require.Len(t, changes, 1)
	require.Equal(t, DefaultChangeContext, changes[0].Context)
}

func TestZonesBands(t *testing.T) {
	z := DefaultZones()
	require.NoError(t, z.Validate())

	require.ElementsMatch(t, []Band{BandTitle, BandChampionsLeague}, z.Bands(1))
	require.ElementsMatch(t, []Band{BandChampionsLeague}, z.Bands(4))
	require.Empty(t, z.Bands(10))
	require.ElementsMatch(t, []Band{BandRelegation}, z.Bands(18))

	require.True(t, z.CrossesBand(2, 1))
	require.True(t, z.CrossesBand(5, 4))
	require.True(t, z.CrossesBand(17, 18))
	require.False(t, z.CrossesBand(9, 8))
	require.False(t, z.CrossesBand(3, 2))
	require.False(t, z.CrossesBand(19, 20))
}

func TestZonesValidate(t *testing.T) {
	z := DefaultZones()
	z.RelegationFrom = 5
	require.Error(t, z.Validate())

	z = DefaultZones()
	z.LeagueSize = 10
	require.Error(t, z.Validate())
}

func TestIsSignificantChange(t *testing.T) {
	z := DefaultZones()
	previous := Snapshot{Teams: []Position{{TeamName: "Arsenal", Position: 5}}}
	current := Snapshot{Teams: []Position{{TeamName: "arsenal", Position: 4}}}

	change := Change{TeamName: "Arsenal", PreviousPosition: 5, NewPosition: 4}
	require.True(t, z.IsSignificantChange(change, previous, current))

	missing := Change{TeamName: "Chelsea", PreviousPosition: 5, NewPosition: 4}
	require.False(t, z.IsSignificantChange(missing, previous, current))
}

func TestNewSnapshotCopiesTeams(t *testing.T) {
	teams := []Position{{TeamName: "Arsenal", Position: 1}}
	at := time.Unix(1_700_000_000, 0)

	snap := NewSnapshot(teams, "2024-25", "ctx", at)
	teams[0].Position = 9

	require.Equal(t, int64(1_700_000_000), snap.Timestamp)
	require.Equal(t, 1, snap.Teams[0].Position)

	pos, ok := snap.Team("ARSENAL")
	require.True(t, ok)
	require.Equal(t, "Arsenal", pos.TeamName)
}
