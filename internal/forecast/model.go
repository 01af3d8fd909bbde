// Package forecast holds the forecasted league table: per-team positions,
// full-table snapshots, the change detector that diffs two snapshots and the
// zone boundaries that make a position significant.
package forecast

import "strings"

// Position is one team's computed standing at a point in time.
type Position struct {
	TeamName       string  `json:"team_name"`
	Position       int     `json:"position"`
	Points         float64 `json:"points"`
	Played         int     `json:"played"`
	Won            int     `json:"won"`
	Drawn          int     `json:"drawn"`
	Lost           int     `json:"lost"`
	GoalsFor       int     `json:"goals_for"`
	GoalsAgainst   int     `json:"goals_against"`
	GoalDifference int     `json:"goal_difference"`

	// Informational, not part of the ranking key.
	ActualPoints    int     `json:"actual_points,omitempty"`
	PointsPerGame   float64 `json:"points_per_game,omitempty"`
	CurrentPosition int     `json:"current_position,omitempty"`
}

// Snapshot is the whole forecast table captured at one instant.
type Snapshot struct {
	Timestamp int64
	Season    string
	Teams     []Position
	Context   string
}

// Team returns the position of the named team, matched case-insensitively.
func (s Snapshot) Team(name string) (Position, bool) {
	for _, team := range s.Teams {
		if strings.EqualFold(team.TeamName, name) {
			return team, true
		}
	}
	return Position{}, false
}

// Change is a team's movement between two snapshots.
type Change struct {
	TeamName         string  `json:"team_name"`
	PreviousPosition int     `json:"previous_position"`
	NewPosition      int     `json:"new_position"`
	PreviousPoints   float64 `json:"previous_points"`
	NewPoints        float64 `json:"new_points"`
	Context          string  `json:"change_context"`
	Timestamp        int64   `json:"timestamp"`
}

// PositionDifference is negative when the team climbed the table.
func (c Change) PositionDifference() int {
	return c.NewPosition - c.PreviousPosition
}

// PointsDifference returns the forecasted points delta.
func (c Change) PointsDifference() float64 {
	return c.NewPoints - c.PreviousPoints
}

// IsImprovement reports whether the team moved up.
func (c Change) IsImprovement() bool {
	return c.PositionDifference() < 0
}

// Movement is "up" or "down".
func (c Change) Movement() string {
	if c.IsImprovement() {
		return "up"
	}
	return "down"
}
