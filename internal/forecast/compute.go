package forecast

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GamesPerSeason is the Premier League season length.
const GamesPerSeason = 38

// Standing is one row of the real league table as reported by the source.
type Standing struct {
	TeamName       string
	Position       int
	Played         int
	Won            int
	Drawn          int
	Lost           int
	Points         int
	GoalsFor       int
	GoalsAgainst   int
	GoalDifference int
}

// Compute extrapolates each team's points-per-game to a full season and ranks
// the result by forecasted points, goal difference, goals scored and finally
// team name so that the order is total.
func Compute(standings []Standing, gamesPerSeason int) []Position {
	if gamesPerSeason <= 0 {
		gamesPerSeason = GamesPerSeason
	}
	games := decimal.NewFromInt(int64(gamesPerSeason))

	type ranked struct {
		pos       Position
		projected decimal.Decimal
	}

	rows := make([]ranked, 0, len(standings))
	for _, s := range standings {
		ppg := decimal.Zero
		projected := decimal.Zero
		if s.Played > 0 {
			raw := decimal.NewFromInt(int64(s.Points)).Div(decimal.NewFromInt(int64(s.Played)))
			ppg = raw.Round(2)
			projected = raw.Mul(games).Round(1)
		}

		gd := s.GoalDifference
		if gd == 0 {
			gd = s.GoalsFor - s.GoalsAgainst
		}

		rows = append(rows, ranked{
			projected: projected,
			pos: Position{
				TeamName:        s.TeamName,
				Points:          projected.InexactFloat64(),
				Played:          s.Played,
				Won:             s.Won,
				Drawn:           s.Drawn,
				Lost:            s.Lost,
				GoalsFor:        s.GoalsFor,
				GoalsAgainst:    s.GoalsAgainst,
				GoalDifference:  gd,
				ActualPoints:    s.Points,
				PointsPerGame:   ppg.InexactFloat64(),
				CurrentPosition: s.Position,
			},
		})
	}

	slices.SortFunc(rows, func(a, b ranked) int {
		if c := b.projected.Cmp(a.projected); c != 0 {
			return c
		}
		if c := cmp.Compare(b.pos.GoalDifference, a.pos.GoalDifference); c != 0 {
			return c
		}
		if c := cmp.Compare(b.pos.GoalsFor, a.pos.GoalsFor); c != 0 {
			return c
		}
		return strings.Compare(a.pos.TeamName, b.pos.TeamName)
	})

	positions := make([]Position, len(rows))
	for i, row := range rows {
		row.pos.Position = i + 1
		positions[i] = row.pos
	}
	return positions
}

// NewSnapshot captures a computed table at the given instant.
func NewSnapshot(teams []Position, season, context string, at time.Time) Snapshot {
	copied := make([]Position, len(teams))
	copy(copied, teams)
	return Snapshot{
		Timestamp: at.UTC().Unix(),
		Season:    season,
		Teams:     copied,
		Context:   context,
	}
}
