package notification

import "strings"

// Teams is the league roster accepted for subscriptions.
var Teams = []string{
	"Arsenal", "Aston Villa", "Brighton", "Burnley", "Chelsea",
	"Crystal Palace", "Everton", "Fulham", "Liverpool", "Luton Town",
	"Manchester City", "Manchester United", "Newcastle United", "Nottingham Forest",
	"Sheffield United", "Tottenham", "West Ham", "Wolves", "Bournemouth", "Brentford",
}

// CanonicalTeam returns the roster spelling of name.
func CanonicalTeam(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, team := range Teams {
		if strings.EqualFold(team, name) {
			return team, true
		}
	}
	return "", false
}
