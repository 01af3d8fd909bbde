package forecast

import "fmt"

// Band is a significant region of the table.
type Band string

const (
	BandTitle           Band = "title_position"
	BandChampionsLeague Band = "champions_league"
	BandRelegation      Band = "relegation"
)

// Zones are the position boundaries of the league. The defaults match a
// 20-team Premier League.
type Zones struct {
	Title           int `mapstructure:"title"`
	ChampionsLeague int `mapstructure:"champions_league"`
	Europa          int `mapstructure:"europa"`
	RelegationFrom  int `mapstructure:"relegation_from"`
	LeagueSize      int `mapstructure:"league_size"`
}

// DefaultZones returns the Premier League boundaries.
func DefaultZones() Zones {
	return Zones{
		Title:           1,
		ChampionsLeague: 4,
		Europa:          7,
		RelegationFrom:  18,
		LeagueSize:      20,
	}
}

// Validate checks the zones are ordered and fit inside the league.
func (z Zones) Validate() error {
	if z.Title < 1 {
		return fmt.Errorf("zones.title must be at least 1")
	}
	if !(z.Title <= z.ChampionsLeague && z.ChampionsLeague <= z.Europa && z.Europa < z.RelegationFrom) {
		return fmt.Errorf("zones must satisfy title <= champions_league <= europa < relegation_from")
	}
	if z.RelegationFrom > z.LeagueSize {
		return fmt.Errorf("zones.relegation_from (%d) exceeds league_size (%d)", z.RelegationFrom, z.LeagueSize)
	}
	return nil
}

// Bands lists the significant bands a position belongs to.
func (z Zones) Bands(position int) []Band {
	bands := make([]Band, 0, 2)
	if position == z.Title {
		bands = append(bands, BandTitle)
	}
	if position >= 1 && position <= z.ChampionsLeague {
		bands = append(bands, BandChampionsLeague)
	}
	if position >= z.RelegationFrom && position <= z.LeagueSize {
		bands = append(bands, BandRelegation)
	}
	return bands
}

// CrossesBand reports whether the band membership differs between the two
// positions.
func (z Zones) CrossesBand(previous, current int) bool {
	before := z.Bands(previous)
	after := z.Bands(current)
	if len(before) != len(after) {
		return true
	}
	seen := make(map[Band]struct{}, len(before))
	for _, b := range before {
		seen[b] = struct{}{}
	}
	for _, b := range after {
		if _, ok := seen[b]; !ok {
			return true
		}
	}
	return false
}

// IsSignificantChange evaluates the team's band membership independently in
// both snapshots. A team missing from either snapshot is never significant.
func (z Zones) IsSignificantChange(change Change, previous, current Snapshot) bool {
	before, ok := previous.Team(change.TeamName)
	if !ok {
		return false
	}
	after, ok := current.Team(change.TeamName)
	if !ok {
		return false
	}
	return z.CrossesBand(before.Position, after.Position)
}
