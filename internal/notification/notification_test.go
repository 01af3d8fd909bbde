package notification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
)

func TestClassifyBoundaries(t *testing.T) {
	g := NewGenerator(forecast.DefaultZones())

	cases := []struct {
		prev, next int
		kind       ChangeType
		sig        Significance
	}{
		{2, 1, ChangeTitleGained, SignificanceHigh},
		{1, 2, ChangeTitleLost, SignificanceHigh},
		{5, 4, ChangeChampionsLeagueIn, SignificanceHigh},
		{4, 5, ChangeChampionsLeagueOut, SignificanceHigh},
		{8, 7, ChangeEuropaIn, SignificanceMedium},
		{7, 8, ChangeEuropaOut, SignificanceMedium},
		{17, 18, ChangeRelegationIn, SignificanceHigh},
		{18, 17, ChangeRelegationOut, SignificanceHigh},
		{12, 9, ChangeSignificantUp, SignificanceMedium},
		{9, 13, ChangeSignificantDown, SignificanceMedium},
		{9, 8, ChangeMinorUp, SignificanceLow},
		{3, 2, ChangeMinorUp, SignificanceLow},
		{19, 20, ChangeMinorDown, SignificanceLow},
	}
	for _, tc := range cases {
		kind, sig := g.Classify(forecast.Change{TeamName: "Arsenal", PreviousPosition: tc.prev, NewPosition: tc.next})
		require.Equal(t, tc.kind, kind, "%d -> %d", tc.prev, tc.next)
		require.Equal(t, tc.sig, sig, "%d -> %d", tc.prev, tc.next)
	}
}

func TestPositionChangeContent(t *testing.T) {
	g := NewGenerator(forecast.DefaultZones())
	change := forecast.Change{
		TeamName:         "Arsenal",
		PreviousPosition: 5,
		NewPosition:      4,
		PreviousPoints:   50.0,
		NewPoints:        53.0,
		Context:          "Arsenal vs Chelsea",
	}

	content := g.PositionChange(change, change.Context)

	require.Equal(t, "⭐ Arsenal into Champions League positions!", content.Title)
	require.Contains(t, content.Title, "Champions League")
	require.Contains(t, content.Body, "moved up from 5th to 4th")
	require.Contains(t, content.Body, "(+3.0 points)")
	require.Contains(t, content.Body, "after Arsenal vs Chelsea")
	require.Equal(t,
		"Arsenal moved up from 5th to 4th in the EPL forecast (+3.0 points) after Arsenal vs Chelsea ⭐ Champions League qualification!",
		content.Body)
	require.Equal(t, TypePositionChange, content.Type)
	require.NotNil(t, content.PositionChange)
	require.Equal(t, 4, content.PositionChange.NewPosition)
}

func TestBodyVariants(t *testing.T) {
	g := NewGenerator(forecast.DefaultZones())

	drop := forecast.Change{TeamName: "Everton", PreviousPosition: 11, NewPosition: 15, PreviousPoints: 45, NewPoints: 41.5}
	kind, _ := g.Classify(drop)
	require.Equal(t, "📉 Everton dropped to 15th", g.Title(drop, kind))
	require.Equal(t, "Everton dropped from 11th to 15th in the EPL forecast (-3.5 points) after a heavy defeat",
		g.Body(drop, kind, "  after a heavy defeat "))

	flat := forecast.Change{TeamName: "Wolves", PreviousPosition: 10, NewPosition: 9, PreviousPoints: 48, NewPoints: 48.05}
	kind, _ = g.Classify(flat)
	require.Equal(t, "Wolves moved up from 10th to 9th in the EPL forecast", g.Body(flat, kind, ""))

	out := forecast.Change{TeamName: "Burnley", PreviousPosition: 18, NewPosition: 17, PreviousPoints: 30, NewPoints: 33}
	kind, _ = g.Classify(out)
	require.Equal(t, "📈 Burnley out of relegation zone!", g.Title(out, kind))
	require.Contains(t, g.Body(out, kind, ""), "🙌 Climbing away from relegation")

	require.Equal(t, "📊 Burnley position update", g.Title(out, ChangeType("unknown")))
}

func TestOrdinal(t *testing.T) {
	cases := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th",
		13: "13th", 20: "20th", 21: "21st", 22: "22nd", 101: "101st", 111: "111th",
	}
	for n, want := range cases {
		require.Equal(t, want, Ordinal(n))
	}
}

func TestTestContent(t *testing.T) {
	g := NewGenerator(forecast.DefaultZones())
	prefs := NewPreferences("user-1", "Chelsea")
	prefs.Sensitivity = SensitivitySignificantOnly

	content := g.Test(prefs)
	require.Equal(t, "🧪 EPL Forecast Test - Chelsea", content.Title)
	require.Equal(t, "Test notification for Chelsea forecast updates. Settings: immediate, significant_only", content.Body)
	require.Equal(t, TypeTest, content.Type)
	require.Nil(t, content.PositionChange)
}

func TestDailySummary(t *testing.T) {
	g := NewGenerator(forecast.DefaultZones())
	prefs := NewPreferences("user-1", "Arsenal")

	none := g.DailySummary(prefs, []forecast.Change{{TeamName: "Chelsea", PreviousPosition: 3, NewPosition: 2}}, "")
	require.Equal(t, "📊 Arsenal forecast update", none.Title)
	require.Equal(t, "Arsenal's forecasted position remains unchanged today", none.Body)
	require.Equal(t, TypeDailySummary, none.Type)

	one := g.DailySummary(prefs, []forecast.Change{{TeamName: "arsenal", PreviousPosition: 5, NewPosition: 4}}, "Matchday 12")
	require.Equal(t, "📈 Arsenal daily forecast update", one.Title)
	require.Equal(t, "Arsenal moved up from position 5 to 4 (Matchday 12)", one.Body)

	many := g.DailySummary(prefs, []forecast.Change{
		{TeamName: "Arsenal", PreviousPosition: 5, NewPosition: 4},
		{TeamName: "Arsenal", PreviousPosition: 4, NewPosition: 6},
		{TeamName: "Arsenal", PreviousPosition: 6, NewPosition: 7},
	}, "")
	require.Equal(t, "📉 Arsenal daily summary", many.Title)
	require.Equal(t, "Arsenal had 3 forecast updates today, ending down 2 positions", many.Body)

	flat := g.DailySummary(prefs, []forecast.Change{
		{TeamName: "Arsenal", PreviousPosition: 5, NewPosition: 4},
		{TeamName: "Arsenal", PreviousPosition: 4, NewPosition: 5},
	}, "")
	require.Equal(t, "➡️ Arsenal daily summary", flat.Title)
	require.Equal(t, "Arsenal had 2 forecast updates today, ending with no net change", flat.Body)
}

func TestPreview(t *testing.T) {
	g := NewGenerator(forecast.DefaultZones())
	prefs := NewPreferences("user-1", "Liverpool")

	previews := g.Preview(prefs, DefaultScenarios(), time.Unix(1_700_000_000, 0))
	require.Len(t, previews, len(DefaultScenarios())+1)
	require.Equal(t, "Test Notification", previews[0].Type)
	require.Equal(t, "🏆 Liverpool forecasted for 1st place!", previews[1].Title)
	require.Equal(t, "⚠️ Liverpool in relegation zone", previews[3].Title)

	unnamed := g.Preview(prefs, []Scenario{{PreviousPosition: 9, NewPosition: 8}}, time.Now())
	require.Equal(t, "Position 8", unnamed[1].Type)
}

func TestPreferencesValidation(t *testing.T) {
	prefs := NewPreferences("user-1", "manchester city")
	require.NoError(t, prefs.Validate())

	prefs.TeamName = "Real Madrid"
	require.ErrorIs(t, prefs.Validate(), ErrUnknownTeam)

	prefs = NewPreferences("user-1", "Arsenal")
	prefs.Timing = "weekly"
	require.ErrorIs(t, prefs.Validate(), ErrInvalidTiming)

	prefs = NewPreferences("user-1", "Arsenal")
	prefs.Sensitivity = "loud"
	require.ErrorIs(t, prefs.Validate(), ErrInvalidSensitivity)

	prefs = NewPreferences("", "Arsenal")
	require.Error(t, prefs.Validate())

	timing, err := ParseTiming(" END_OF_DAY ")
	require.NoError(t, err)
	require.Equal(t, TimingEndOfDay, timing)

	team, ok := CanonicalTeam(" tottenham")
	require.True(t, ok)
	require.Equal(t, "Tottenham", team)
}

func TestPreferencesStamp(t *testing.T) {
	prefs := NewPreferences("user-1", "Arsenal")
	first := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	prefs.Stamp(first)
	require.Equal(t, first, prefs.CreatedAt)
	require.Equal(t, first, prefs.UpdatedAt)

	later := first.Add(time.Hour)
	prefs.Stamp(later)
	require.Equal(t, first, prefs.CreatedAt)
	require.Equal(t, later, prefs.UpdatedAt)
}

func TestPreferencesAndContentUseSnakeCaseJSON(t *testing.T) {
	prefs := NewPreferences("u1", "Arsenal")
	prefs.PushToken = "abc"
	raw, err := json.Marshal(prefs)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "u1", fields["user_id"])
	require.Equal(t, "abc", fields["push_token"])
	require.Equal(t, "immediate", fields["timing"])
	require.NotContains(t, fields, "UserID")

	raw, err = json.Marshal(NewGenerator(forecast.DefaultZones()).Test(prefs))
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "Arsenal", fields["team_name"])
	require.Equal(t, TypeTest, fields["notification_type"])
	require.Contains(t, fields, "title")
	require.NotContains(t, fields, "position_change")
}
