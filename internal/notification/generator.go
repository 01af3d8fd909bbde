package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
)

// ChangeType is the classified kind of a position transition.
type ChangeType string

const (
	ChangeTitleGained        ChangeType = "title_gained"
	ChangeTitleLost          ChangeType = "title_lost"
	ChangeChampionsLeagueIn  ChangeType = "champions_league_in"
	ChangeChampionsLeagueOut ChangeType = "champions_league_out"
	ChangeEuropaIn           ChangeType = "europa_in"
	ChangeEuropaOut          ChangeType = "europa_out"
	ChangeRelegationIn       ChangeType = "relegation_in"
	ChangeRelegationOut      ChangeType = "relegation_out"
	ChangeSignificantUp      ChangeType = "significant_up"
	ChangeSignificantDown    ChangeType = "significant_down"
	ChangeMinorUp            ChangeType = "minor_up"
	ChangeMinorDown          ChangeType = "minor_down"
)

// Moves of at least this many places are significant.
const significantMoveThreshold = 3

// Significance ranks how notable a change is.
type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
)

const (
	emojiTitle           = "🏆"
	emojiChampionsLeague = "⭐"
	emojiEuropa          = "🌟"
	emojiRelegation      = "⚠️"
	emojiUp              = "📈"
	emojiDown            = "📉"
	emojiStable          = "➡️"
	emojiTest            = "🧪"
	emojiFallback        = "📊"
)

var titleTemplates = map[ChangeType]string{
	ChangeTitleGained:        "{emoji} {team} forecasted for 1st place!",
	ChangeTitleLost:          "{emoji} {team} dropped from 1st place",
	ChangeChampionsLeagueIn:  "{emoji} {team} into Champions League positions!",
	ChangeChampionsLeagueOut: "{emoji} {team} dropped out of Champions League",
	ChangeEuropaIn:           "{emoji} {team} into Europa League positions!",
	ChangeEuropaOut:          "{emoji} {team} dropped out of Europa League",
	ChangeRelegationIn:       "{emoji} {team} in relegation zone",
	ChangeRelegationOut:      "{emoji} {team} out of relegation zone!",
	ChangeSignificantUp:      "{emoji} {team} climbed to {position}",
	ChangeSignificantDown:    "{emoji} {team} dropped to {position}",
	ChangeMinorUp:            "{emoji} {team} moved up in forecast",
	ChangeMinorDown:          "{emoji} {team} moved down in forecast",
}

var titleEmoji = map[ChangeType]string{
	ChangeTitleGained:        emojiTitle,
	ChangeTitleLost:          emojiDown,
	ChangeChampionsLeagueIn:  emojiChampionsLeague,
	ChangeChampionsLeagueOut: emojiDown,
	ChangeEuropaIn:           emojiEuropa,
	ChangeEuropaOut:          emojiDown,
	ChangeRelegationIn:       emojiRelegation,
	ChangeRelegationOut:      emojiUp,
	ChangeSignificantUp:      emojiUp,
	ChangeSignificantDown:    emojiDown,
	ChangeMinorUp:            emojiUp,
	ChangeMinorDown:          emojiDown,
}

var bodySuffix = map[ChangeType]string{
	ChangeTitleGained:       " 🏆 Title contenders!",
	ChangeChampionsLeagueIn: " ⭐ Champions League qualification!",
	ChangeRelegationIn:      " ⚠️ Relegation battle intensifies",
	ChangeRelegationOut:     " 🙌 Climbing away from relegation",
}

// Generator renders notification text. It is pure and safe for concurrent use.
type Generator struct {
	zones forecast.Zones
}

// NewGenerator builds a generator for the given league boundaries.
func NewGenerator(zones forecast.Zones) *Generator {
	return &Generator{zones: zones}
}

// Classify maps a transition onto the change taxonomy. The first matching
// rule wins.
func (g *Generator) Classify(change forecast.Change) (ChangeType, Significance) {
	prev, next := change.PreviousPosition, change.NewPosition
	z := g.zones

	switch {
	case prev != z.Title && next == z.Title:
		return ChangeTitleGained, SignificanceHigh
	case prev == z.Title && next != z.Title:
		return ChangeTitleLost, SignificanceHigh
	case prev > z.ChampionsLeague && next <= z.ChampionsLeague:
		return ChangeChampionsLeagueIn, SignificanceHigh
	case prev <= z.ChampionsLeague && next > z.ChampionsLeague:
		return ChangeChampionsLeagueOut, SignificanceHigh
	case prev > z.Europa && next <= z.Europa:
		return ChangeEuropaIn, SignificanceMedium
	case prev <= z.Europa && next > z.Europa:
		return ChangeEuropaOut, SignificanceMedium
	case prev < z.RelegationFrom && next >= z.RelegationFrom:
		return ChangeRelegationIn, SignificanceHigh
	case prev >= z.RelegationFrom && next < z.RelegationFrom:
		return ChangeRelegationOut, SignificanceHigh
	}

	diff := next - prev
	if diff < 0 {
		diff = -diff
	}
	if diff >= significantMoveThreshold {
		if change.IsImprovement() {
			return ChangeSignificantUp, SignificanceMedium
		}
		return ChangeSignificantDown, SignificanceMedium
	}
	if change.IsImprovement() {
		return ChangeMinorUp, SignificanceLow
	}
	return ChangeMinorDown, SignificanceLow
}

// Title renders the headline for a classified change.
func (g *Generator) Title(change forecast.Change, kind ChangeType) string {
	template, ok := titleTemplates[kind]
	if !ok {
		template = "{emoji} {team} position update"
	}
	emoji, ok := titleEmoji[kind]
	if !ok {
		emoji = emojiFallback
	}
	return strings.NewReplacer(
		"{emoji}", emoji,
		"{team}", change.TeamName,
		"{position}", Ordinal(change.NewPosition),
	).Replace(template)
}

// Body renders the detail line: movement, points delta, trigger context and
// an editorial suffix for the headline-worthy transitions.
func (g *Generator) Body(change forecast.Change, kind ChangeType, changeContext string) string {
	var b strings.Builder
	b.WriteString(change.TeamName)
	if change.IsImprovement() {
		fmt.Fprintf(&b, " moved up from %s to %s", Ordinal(change.PreviousPosition), Ordinal(change.NewPosition))
	} else {
		fmt.Fprintf(&b, " dropped from %s to %s", Ordinal(change.PreviousPosition), Ordinal(change.NewPosition))
	}
	b.WriteString(" in the EPL forecast")

	if delta := change.PointsDifference(); delta > 0.1 {
		fmt.Fprintf(&b, " (+%.1f points)", delta)
	} else if delta < -0.1 {
		fmt.Fprintf(&b, " (%.1f points)", delta)
	}

	if ctx := strings.TrimSpace(changeContext); ctx != "" {
		if !strings.HasPrefix(ctx, "after") {
			ctx = "after " + ctx
		}
		b.WriteString(" ")
		b.WriteString(ctx)
	}

	b.WriteString(bodySuffix[kind])
	return b.String()
}

// PositionChange builds the full notification for a change.
func (g *Generator) PositionChange(change forecast.Change, changeContext string) Content {
	kind, _ := g.Classify(change)
	c := change
	return Content{
		Title:          g.Title(change, kind),
		Body:           g.Body(change, kind, changeContext),
		TeamName:       change.TeamName,
		PositionChange: &c,
		Type:           TypePositionChange,
	}
}

// Test builds the connectivity-check notification describing the user's
// current settings.
func (g *Generator) Test(prefs Preferences) Content {
	body := fmt.Sprintf("Test notification for %s forecast updates. Settings: %s, %s",
		prefs.TeamName, prefs.Timing, prefs.Sensitivity)
	return Content{
		Title:    fmt.Sprintf("%s EPL Forecast Test - %s", emojiTest, prefs.TeamName),
		Body:     body,
		TeamName: prefs.TeamName,
		Type:     TypeTest,
	}
}

// DailySummary folds a day's changes for the user's team into one
// notification. changes is expected in chronological order.
func (g *Generator) DailySummary(prefs Preferences, changes []forecast.Change, changeContext string) Content {
	team := prefs.TeamName
	mine := make([]forecast.Change, 0, len(changes))
	for _, c := range changes {
		if prefs.Tracks(c) {
			mine = append(mine, c)
		}
	}

	var title, body string
	switch len(mine) {
	case 0:
		title = fmt.Sprintf("%s %s forecast update", emojiFallback, team)
		body = fmt.Sprintf("%s's forecasted position remains unchanged today", team)
	case 1:
		c := mine[0]
		emoji := emojiDown
		if c.IsImprovement() {
			emoji = emojiUp
		}
		title = fmt.Sprintf("%s %s daily forecast update", emoji, team)
		body = fmt.Sprintf("%s moved %s from position %d to %d", team, c.Movement(), c.PreviousPosition, c.NewPosition)
	default:
		net := mine[len(mine)-1].NewPosition - mine[0].PreviousPosition
		emoji, direction := emojiStable, "with no net change"
		switch {
		case net < 0:
			emoji, direction = emojiUp, "up "+plural(-net, "position")
		case net > 0:
			emoji, direction = emojiDown, "down "+plural(net, "position")
		}
		title = fmt.Sprintf("%s %s daily summary", emoji, team)
		body = fmt.Sprintf("%s had %d forecast updates today, ending %s", team, len(mine), direction)
	}

	if changeContext != "" {
		body += fmt.Sprintf(" (%s)", changeContext)
	}
	return Content{Title: title, Body: body, TeamName: team, Type: TypeDailySummary}
}

// Scenario is a hypothetical transition rendered by Preview.
type Scenario struct {
	Name             string
	PreviousPosition int
	NewPosition      int
	PreviousPoints   float64
	NewPoints        float64
	Context          string
}

// DefaultScenarios covers the main kinds of change a subscriber can receive.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "Title race", PreviousPosition: 2, NewPosition: 1, PreviousPoints: 80, NewPoints: 83, Context: "win against rivals"},
		{Name: "Champions League", PreviousPosition: 5, NewPosition: 4, PreviousPoints: 65, NewPoints: 68, Context: "late winner"},
		{Name: "Relegation danger", PreviousPosition: 17, NewPosition: 18, PreviousPoints: 35, NewPoints: 34},
		{Name: "Small move", PreviousPosition: 9, NewPosition: 8, PreviousPoints: 52, NewPoints: 52.5},
	}
}

// Preview is one rendered example notification.
type Preview struct {
	Type  string
	Title string
	Body  string
}

// Preview renders the test notification followed by one notification per
// scenario for the user's team.
func (g *Generator) Preview(prefs Preferences, scenarios []Scenario, now time.Time) []Preview {
	test := g.Test(prefs)
	previews := []Preview{{Type: "Test Notification", Title: test.Title, Body: test.Body}}

	for _, s := range scenarios {
		change := forecast.Change{
			TeamName:         prefs.TeamName,
			PreviousPosition: s.PreviousPosition,
			NewPosition:      s.NewPosition,
			PreviousPoints:   s.PreviousPoints,
			NewPoints:        s.NewPoints,
			Context:          s.Context,
			Timestamp:        now.Unix(),
		}
		kind, _ := g.Classify(change)

		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Position %d", s.NewPosition)
		}
		previews = append(previews, Preview{
			Type:  name,
			Title: g.Title(change, kind),
			Body:  g.Body(change, kind, s.Context),
		})
	}
	return previews
}

// Ordinal formats 1 as "1st", 12 as "12th", 22 as "22nd".
func Ordinal(n int) string {
	if m := n % 100; m >= 10 && m <= 20 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
